package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHas(t *testing.T) {
	tests := []struct {
		role string
		perm Permission
		want bool
	}{
		{"admin", PermUserManage, true},
		{"admin", PermStockReconcile, true},
		{"pharmacist", PermStockAdjust, true},
		{"pharmacist", PermUserManage, false},
		{"cashier", PermInvoiceCreate, true},
		{"cashier", PermStockWrite, false},
		{"cashier", PermProductDelete, false},
		{"storekeeper", PermStockBulk, true},
		{"storekeeper", PermInvoiceCreate, false},
		{"accountant", PermInvoiceExport, true},
		{"accountant", PermStockWrite, false},
		{"ghost", PermProductRead, false},
		{"", PermProductRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+string(tt.perm), func(t *testing.T) {
			assert.Equal(t, tt.want, Has(tt.role, tt.perm))
		})
	}
}

func TestAdminHoldsEveryPermission(t *testing.T) {
	for _, p := range allPermissions {
		assert.True(t, Has(string(RoleAdmin), p), p)
	}
	assert.Len(t, PermissionsFor("admin"), len(allPermissions))
}

func TestPermissionsForReturnsCopy(t *testing.T) {
	perms := PermissionsFor("cashier")
	perms[0] = PermUserManage

	assert.False(t, Has("cashier", PermUserManage))
	assert.Empty(t, PermissionsFor("unknown"))
}

func TestValidRole(t *testing.T) {
	for _, r := range Roles() {
		assert.True(t, ValidRole(string(r)))
	}
	assert.False(t, ValidRole("superuser"))
	assert.Len(t, Roles(), 5)
}
