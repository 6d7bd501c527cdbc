package service

import (
	"context"
	"testing"
	"time"

	"github.com/lolo262652/amg-jewelry-manager/internal/srm/entity"
	"github.com/lolo262652/amg-jewelry-manager/internal/srm/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedListOrders creates four March orders:
// CMD2503001 sup-001 03-02, CMD2503002 sup-002 03-05, CMD2503003 sup-001 03-10 (pending), CMD2503004 sup-002 03-20
func seedListOrders(t *testing.T, svc *OrderService) []*entity.SupplierOrder {
	t.Helper()
	ctx := context.Background()

	specs := []struct {
		supplier string
		day      int
	}{
		{"sup-001", 2},
		{"sup-002", 5},
		{"sup-001", 10},
		{"sup-002", 20},
	}

	var out []*entity.SupplierOrder
	for _, sp := range specs {
		in := scenarioInput(sp.supplier)
		date := time.Date(2025, time.March, sp.day, 12, 0, 0, 0, time.UTC)
		in.OrderDate = &date
		order, err := svc.CreateOrder(ctx, "user-1", in)
		require.NoError(t, err)
		out = append(out, order)
	}

	_, err := svc.TransitionOrder(ctx, "user-1", out[2].ID, entity.OrderStatusPending)
	require.NoError(t, err)
	return out
}

func numbersOf(orders []entity.SupplierOrder) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.OrderNumber)
	}
	return out
}

func TestListOrders(t *testing.T) {
	svc, _, _ := setupOrderService(t)
	seedListOrders(t, svc)

	from := time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		query     repository.OrderListQuery
		want      []string
		wantTotal int64
	}{
		{
			name:      "default sort is order_date desc",
			query:     repository.OrderListQuery{SortDesc: true},
			want:      []string{"CMD2503004", "CMD2503003", "CMD2503002", "CMD2503001"},
			wantTotal: 4,
		},
		{
			name:      "search by supplier name",
			query:     repository.OrderListQuery{Search: "perles", SortBy: "order_number"},
			want:      []string{"CMD2503002", "CMD2503004"},
			wantTotal: 2,
		},
		{
			name:      "search by order number",
			query:     repository.OrderListQuery{Search: "cmd2503003"},
			want:      []string{"CMD2503003"},
			wantTotal: 1,
		},
		{
			name:      "status filter",
			query:     repository.OrderListQuery{Status: entity.OrderStatusPending},
			want:      []string{"CMD2503003"},
			wantTotal: 1,
		},
		{
			name:      "supplier filter",
			query:     repository.OrderListQuery{SupplierID: "sup-001", SortBy: "order_number"},
			want:      []string{"CMD2503001", "CMD2503003"},
			wantTotal: 2,
		},
		{
			name:      "date range",
			query:     repository.OrderListQuery{DateFrom: &from, DateTo: &to, SortBy: "order_date"},
			want:      []string{"CMD2503002", "CMD2503003"},
			wantTotal: 2,
		},
		{
			name:      "second page",
			query:     repository.OrderListQuery{Page: 2, Limit: 3, SortBy: "order_number"},
			want:      []string{"CMD2503004"},
			wantTotal: 4,
		},
		{
			name:      "limit zero returns all",
			query:     repository.OrderListQuery{Limit: 0, SortBy: "order_number"},
			want:      []string{"CMD2503001", "CMD2503002", "CMD2503003", "CMD2503004"},
			wantTotal: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, total, err := svc.ListOrders(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.want, numbersOf(orders))
		})
	}
}

func TestListOrders_Hydrated(t *testing.T) {
	svc, _, _ := setupOrderService(t)
	seedListOrders(t, svc)

	orders, _, err := svc.ListOrders(context.Background(), repository.OrderListQuery{Limit: 1, SortBy: "order_number"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.NotNil(t, orders[0].Supplier)
	require.Len(t, orders[0].Items, 2)
	require.NotNil(t, orders[0].Items[0].Product)
	assert.Equal(t, "Bague solitaire", orders[0].Items[0].Product.Name)
}

func TestListOrders_RejectsUnknownSort(t *testing.T) {
	svc, _, _ := setupOrderService(t)

	_, _, err := svc.ListOrders(context.Background(), repository.OrderListQuery{SortBy: "supplier_id; DROP TABLE amg_suppliers"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, _, err = svc.ListOrders(context.Background(), repository.OrderListQuery{Status: "archived"})
	assert.ErrorAs(t, err, &verr)
}

func TestExportOrders(t *testing.T) {
	svc, _, _ := setupOrderService(t)
	seedListOrders(t, svc)

	f, filename, err := svc.ExportOrders(context.Background(), repository.OrderListQuery{SupplierID: "sup-002", SortBy: "order_number", Limit: 1})
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "commandes-fournisseurs-20250314.xlsx", filename)

	rows, err := f.GetRows("Commandes")
	require.NoError(t, err)
	// header + both sup-002 orders; pagination is ignored for exports
	require.Len(t, rows, 3)
	assert.Equal(t, "CMD2503002", rows[1][0])
	assert.Equal(t, "Perles du Sud", rows[1][1])
	assert.Equal(t, "05/03/2025", rows[1][2])
	assert.Equal(t, "29", rows[1][9])

	lines, err := f.GetRows("Lignes")
	require.NoError(t, err)
	require.Len(t, lines, 5)
	assert.Equal(t, "Bague solitaire", lines[1][1])
}
