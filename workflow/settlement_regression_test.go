package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/boutique_backend/config"
	"github.com/mmdatafocus/boutique_backend/models"
	"github.com/mmdatafocus/boutique_backend/utils"
	"github.com/mmdatafocus/boutique_backend/workflow"
	"github.com/shopspring/decimal"
)

// Regression: a replayed payment confirmation must not decrement stock or
// credit commission a second time, and a payout must drain exactly what the
// settled orders earned.
func TestConfirmAndSettle_ReplaySafeEndToEnd(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "boutique_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	db := config.GetDB()

	product, err := models.CreateProductWithVariants(ctx, &models.NewProduct{
		Name:  "Silk Scarf",
		Code:  "SCARF-001",
		Price: decimal.NewFromInt(1000),
		Variants: []models.NewInventoryVariant{
			{Color: "red", Size: "M", Quantity: 5},
		},
	})
	if err != nil {
		t.Fatalf("CreateProductWithVariants: %v", err)
	}

	link, err := models.GenerateAffiliateLink(ctx, &models.NewAffiliateLink{
		AffiliateId: 7,
		ProductId:   product.ID,
		ProductUrl:  "https://shop.test/p/" + fmt.Sprint(product.ID),
	})
	if err != nil {
		t.Fatalf("GenerateAffiliateLink: %v", err)
	}

	order, err := models.InitiateOrder(ctx, &models.NewFullOrder{
		PhonepeOrderId: "pp-regression-1",
		CustomerName:   "Test Customer",
		Phone:          "0912345678",
		Address:        "1 Test Lane",
		CartItems: []models.CartItem{
			{ProductId: product.ID, Color: "red", Size: "M", Quantity: 2, Price: decimal.NewFromInt(500)},
		},
		Total:        decimal.NewFromInt(1000),
		ReferralCode: link.ReferralCode,
	})
	if err != nil {
		t.Fatalf("InitiateOrder: %v", err)
	}

	settled, err := workflow.ConfirmAndSettle(ctx, order.PhonepeOrderId, nil)
	if err != nil {
		t.Fatalf("ConfirmAndSettle: %v", err)
	}
	if settled.PaymentStatus != models.PaymentStatusDone {
		t.Fatalf("expected done, got %q", settled.PaymentStatus)
	}

	// Replay.
	replayed, err := workflow.ConfirmAndSettle(ctx, order.PhonepeOrderId, nil)
	if err != nil {
		t.Fatalf("ConfirmAndSettle replay: %v", err)
	}
	if replayed.PaymentStatus != models.PaymentStatusDone {
		t.Fatalf("replay must report the settled order, got %q", replayed.PaymentStatus)
	}

	variants, err := models.ListVariantsByProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("ListVariantsByProduct: %v", err)
	}
	if len(variants) != 1 || variants[0].Quantity != 3 {
		t.Fatalf("expected quantity 3 after one settlement, got %+v", variants)
	}

	var commissionCount int64
	if err := db.WithContext(ctx).Model(&models.AffiliateCommission{}).
		Where("order_id = ?", order.PhonepeOrderId).
		Count(&commissionCount).Error; err != nil {
		t.Fatalf("count commissions: %v", err)
	}
	if commissionCount != 1 {
		t.Fatalf("expected exactly 1 commission row, got %d", commissionCount)
	}

	var commission models.AffiliateCommission
	if err := db.WithContext(ctx).
		Where("order_id = ?", order.PhonepeOrderId).
		First(&commission).Error; err != nil {
		t.Fatalf("load commission: %v", err)
	}
	if commission.ProductId != product.ID {
		t.Fatalf("commission must record the referred product, got product_id %d want %d", commission.ProductId, product.ID)
	}
	if commission.AffiliateId != 7 {
		t.Fatalf("commission must record the affiliate, got %d", commission.AffiliateId)
	}

	// Default rate 5% of 1000.
	summary, err := models.GetAffiliateSummary(ctx, 7)
	if err != nil {
		t.Fatalf("GetAffiliateSummary: %v", err)
	}
	if !summary.TotalCommission.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected 50 outstanding, got %s", summary.TotalCommission)
	}
	if summary.TotalSales != 1 {
		t.Fatalf("expected 1 attributed sale, got %d", summary.TotalSales)
	}

	payment, err := workflow.PayAffiliate(ctx, 7, "regression payout")
	if err != nil {
		t.Fatalf("PayAffiliate: %v", err)
	}
	if !payment.Amount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected payout 50, got %s", payment.Amount)
	}

	afterPayout, err := models.GetAffiliateSummary(ctx, 7)
	if err != nil {
		t.Fatalf("GetAffiliateSummary after payout: %v", err)
	}
	if !afterPayout.TotalCommission.Equal(decimal.Zero) {
		t.Fatalf("payout must reset outstanding commission, got %s", afterPayout.TotalCommission)
	}

	// Second payout with nothing outstanding must be rejected.
	if _, err := workflow.PayAffiliate(ctx, 7, ""); !errors.Is(err, utils.ErrorNoBalance) {
		t.Fatalf("expected no-balance rejection, got %v", err)
	}
}

// Regression: oversell clamps stock at zero instead of going negative, and a
// referral code whose product is not in the cart earns nothing.
func TestConfirmAndSettle_ClampAndAttributionGuards(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "boutique_test")
	t.Setenv("STRICT_STOCK_ENFORCEMENT", "")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	db := config.GetDB()

	shirt, err := models.CreateProductWithVariants(ctx, &models.NewProduct{
		Name:  "Linen Shirt",
		Code:  "SHIRT-001",
		Price: decimal.NewFromInt(400),
		Variants: []models.NewInventoryVariant{
			{Color: "white", Size: "L", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("CreateProductWithVariants: %v", err)
	}
	hat, err := models.CreateProductWithVariants(ctx, &models.NewProduct{
		Name:  "Straw Hat",
		Code:  "HAT-001",
		Price: decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("CreateProductWithVariants hat: %v", err)
	}

	// Link points at the hat, but the cart only holds shirts.
	hatLink, err := models.GenerateAffiliateLink(ctx, &models.NewAffiliateLink{
		AffiliateId: 8,
		ProductId:   hat.ID,
		ProductUrl:  "https://shop.test/p/" + fmt.Sprint(hat.ID),
	})
	if err != nil {
		t.Fatalf("GenerateAffiliateLink: %v", err)
	}

	order, err := models.InitiateOrder(ctx, &models.NewFullOrder{
		PhonepeOrderId: "pp-regression-2",
		CustomerName:   "Clamp Customer",
		Phone:          "0987654321",
		Address:        "2 Test Lane",
		CartItems: []models.CartItem{
			{ProductId: shirt.ID, Color: "white", Size: "L", Quantity: 3, Price: decimal.NewFromInt(400)},
		},
		Total:        decimal.NewFromInt(1200),
		ReferralCode: hatLink.ReferralCode,
	})
	if err != nil {
		t.Fatalf("InitiateOrder: %v", err)
	}

	if _, err := workflow.ConfirmAndSettle(ctx, order.PhonepeOrderId, nil); err != nil {
		t.Fatalf("ConfirmAndSettle: %v", err)
	}

	variants, err := models.ListVariantsByProduct(ctx, shirt.ID)
	if err != nil {
		t.Fatalf("ListVariantsByProduct: %v", err)
	}
	if len(variants) != 1 || variants[0].Quantity != 0 {
		t.Fatalf("oversell must clamp at zero, got %+v", variants)
	}

	var commissionCount int64
	if err := db.WithContext(ctx).Model(&models.AffiliateCommission{}).
		Where("order_id = ?", order.PhonepeOrderId).
		Count(&commissionCount).Error; err != nil {
		t.Fatalf("count commissions: %v", err)
	}
	if commissionCount != 0 {
		t.Fatalf("product not in cart must not earn commission, got %d rows", commissionCount)
	}
}

// Regression: recording a click bumps the link counter and appends one audit
// row, and an unknown code is rejected with the not-found error so the
// storefront can still complete its redirect.
func TestRecordClick_CountsAndRejectsUnknownCode(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "boutique_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	product, err := models.CreateProductWithVariants(ctx, &models.NewProduct{
		Name:  "Cotton Tote",
		Code:  "TOTE-001",
		Price: decimal.NewFromInt(300),
	})
	if err != nil {
		t.Fatalf("CreateProductWithVariants: %v", err)
	}
	link, err := models.GenerateAffiliateLink(ctx, &models.NewAffiliateLink{
		AffiliateId: 9,
		ProductId:   product.ID,
		ProductUrl:  "https://shop.test/p/" + fmt.Sprint(product.ID),
	})
	if err != nil {
		t.Fatalf("GenerateAffiliateLink: %v", err)
	}

	if err := models.RecordClick(ctx, link.ReferralCode, "203.0.113.5", "test-agent"); err != nil {
		t.Fatalf("RecordClick: %v", err)
	}
	if err := models.RecordClick(ctx, link.ReferralCode, "203.0.113.6", "test-agent"); err != nil {
		t.Fatalf("RecordClick second: %v", err)
	}

	links, err := models.ListAffiliateLinks(ctx, 9)
	if err != nil {
		t.Fatalf("ListAffiliateLinks: %v", err)
	}
	if len(links) != 1 || links[0].TotalClicks != 2 {
		t.Fatalf("expected total_clicks 2, got %+v", links)
	}

	clicks, err := models.ListAffiliateClicks(ctx, link.ID, 0)
	if err != nil {
		t.Fatalf("ListAffiliateClicks: %v", err)
	}
	if len(clicks) != 2 {
		t.Fatalf("expected 2 click rows, got %d", len(clicks))
	}
	if clicks[0].ReferralCode != link.ReferralCode {
		t.Fatalf("click row carries wrong code %q", clicks[0].ReferralCode)
	}

	if err := models.RecordClick(ctx, "AFF-0-0-0", "203.0.113.7", "test-agent"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("unknown code must return not-found, got %v", err)
	}
}

// Regression: updating a product must not clobber its created_at.
func TestUpdateProduct_PreservesCreatedAt(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "boutique_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	created, err := models.CreateProductWithVariants(ctx, &models.NewProduct{
		Name:  "Wool Beanie",
		Code:  "BEANIE-001",
		Price: decimal.NewFromInt(250),
		Variants: []models.NewInventoryVariant{
			{Color: "grey", Size: "one-size", Quantity: 4},
		},
	})
	if err != nil {
		t.Fatalf("CreateProductWithVariants: %v", err)
	}
	before, err := models.GetProduct(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)

	if _, err := models.UpdateProductWithVariants(ctx, created.ID, &models.NewProduct{
		Name:  "Wool Beanie v2",
		Code:  "BEANIE-001",
		Price: decimal.NewFromInt(275),
		Variants: []models.NewInventoryVariant{
			{Color: "navy", Size: "one-size", Quantity: 6},
		},
	}); err != nil {
		t.Fatalf("UpdateProductWithVariants: %v", err)
	}

	after, err := models.GetProduct(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetProduct after update: %v", err)
	}
	if after.Name != "Wool Beanie v2" {
		t.Fatalf("update did not apply, got %q", after.Name)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("created_at changed on update: %s -> %s", before.CreatedAt, after.CreatedAt)
	}
	if len(after.Variants) != 1 || after.Variants[0].Color != "navy" || after.Variants[0].Quantity != 6 {
		t.Fatalf("variant set not replaced, got %+v", after.Variants)
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("boutique-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=boutique_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
