package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kicksvault/storefront/internal/cart"
	"github.com/kicksvault/storefront/internal/domain"
	"github.com/kicksvault/storefront/internal/pricing"
	"github.com/kicksvault/storefront/internal/repository"
	"github.com/kicksvault/storefront/internal/repository/memory"
)

// cartFile is the YAML layout accepted by the quote command
type cartFile struct {
	Lines []struct {
		Product    domain.Product    `yaml:"product"`
		Quantity   int               `yaml:"quantity"`
		Selections map[string]string `yaml:"selections"`
		Color      string            `yaml:"color"`
	} `yaml:"lines"`
	Voucher map[string]interface{} `yaml:"voucher"`
}

func main() {
	vat := flag.String("vat", "0.01", "VAT rate applied to the subtotal")
	at := flag.String("at", "", "evaluate vouchers at this RFC 3339 time (default now)")
	flag.Usage = func() {
		fmt.Println("Usage: go run cmd/quote/main.go [-vat 0.01] [-at 2025-01-01T00:00:00Z] <cart.yaml>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read cart file: %v\n", err)
		os.Exit(1)
	}

	var file cartFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse cart file: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	if *at != "" {
		if now, err = time.Parse(time.RFC3339, *at); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -at: %v\n", err)
			os.Exit(1)
		}
	}

	cfg := pricing.DefaultConfig()
	if cfg.VATRate, err = decimal.NewFromString(*vat); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -vat: %v\n", err)
		os.Exit(1)
	}
	engine, err := pricing.NewEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid pricing configuration: %v\n", err)
		os.Exit(1)
	}

	// Lines go through the real cart so merging and clamping match the storefront
	ctx := context.Background()
	store, err := cart.Open(ctx, memory.NewScopeStore(), repository.GuestScope, logger, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open cart: %v\n", err)
		os.Exit(1)
	}

	for i, line := range file.Lines {
		result, err := store.AddSelection(ctx, line.Product, line.Quantity, line.Selections, line.Color)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Line %d: %v\n", i+1, err)
			os.Exit(1)
		}
		if result.Message != "" {
			fmt.Printf("⚠️  line %d (%s): %s\n", i+1, line.Product.Name, result.Message)
		}
	}

	var voucher *domain.Voucher
	if file.Voucher != nil {
		raw, err := json.Marshal(file.Voucher)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode voucher: %v\n", err)
			os.Exit(1)
		}
		v, err := domain.DecodeVoucher(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid voucher: %v\n", err)
			os.Exit(1)
		}
		voucher = &v
	}

	b := engine.Compute(store.Items(), voucher, now)

	fmt.Printf("\n%-40s %8s %14s\n", "Item", "Qty", "Line total")
	for _, item := range store.Items() {
		name := item.Product.Name
		if item.SelectedVariant != nil {
			name = fmt.Sprintf("%s (%s)", name, item.SelectedVariant.Name)
		}
		if item.SelectedColor != "" {
			name = fmt.Sprintf("%s [%s]", name, item.SelectedColor)
		}
		fmt.Printf("%-40s %8d %14d\n", name, item.Quantity, item.UnitPrice()*domain.Money(item.Quantity))
	}
	fmt.Println()
	fmt.Printf("%-49s %14d\n", "Subtotal", b.Subtotal)
	fmt.Printf("%-49s %14d\n", "VAT ("+cfg.VATRate.String()+")", b.VATAmount)
	fmt.Printf("%-49s %14d\n", "Shipping", b.ShippingFee)
	if b.Voucher != nil && !b.Voucher.Valid {
		fmt.Printf("Voucher not applied: %s\n", b.Voucher.Message)
	}
	fmt.Printf("%-49s %14d\n", "Discount "+b.VoucherCode, -b.DiscountAmount)
	fmt.Printf("%-49s %14d\n", "Total", b.Total)
}
