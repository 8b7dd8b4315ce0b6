// Package security holds the static role to permission table.
package security

import "sort"

// Permission is a capability checked by the HTTP layer.
type Permission string

const (
	PermProductRead   Permission = "product:read"
	PermProductWrite  Permission = "product:write"
	PermProductDelete Permission = "product:delete"

	PermStockRead      Permission = "stock:read"
	PermStockWrite     Permission = "stock:write"
	PermStockAdjust    Permission = "stock:adjust"
	PermStockBulk      Permission = "stock:bulk"
	PermStockReconcile Permission = "stock:reconcile"

	PermInvoiceRead    Permission = "invoice:read"
	PermInvoiceCreate  Permission = "invoice:create"
	PermInvoicePayment Permission = "invoice:payment"
	PermInvoiceExport  Permission = "invoice:export"

	PermUserManage Permission = "user:manage"
)

// Role is assigned to every user account.
type Role string

const (
	RoleAdmin       Role = "admin"
	RolePharmacist  Role = "pharmacist"
	RoleCashier     Role = "cashier"
	RoleStorekeeper Role = "storekeeper"
	RoleAccountant  Role = "accountant"
)

// allPermissions is the full capability set, granted to admins.
var allPermissions = []Permission{
	PermProductRead, PermProductWrite, PermProductDelete,
	PermStockRead, PermStockWrite, PermStockAdjust, PermStockBulk, PermStockReconcile,
	PermInvoiceRead, PermInvoiceCreate, PermInvoicePayment, PermInvoiceExport,
	PermUserManage,
}

var rolePermissions = map[Role]map[Permission]struct{}{
	RoleAdmin: setOf(allPermissions...),
	RolePharmacist: setOf(
		PermProductRead, PermProductWrite, PermProductDelete,
		PermStockRead, PermStockWrite, PermStockAdjust,
		PermInvoiceRead, PermInvoiceCreate, PermInvoicePayment,
	),
	RoleCashier: setOf(
		PermProductRead,
		PermStockRead,
		PermInvoiceRead, PermInvoiceCreate, PermInvoicePayment,
	),
	RoleStorekeeper: setOf(
		PermProductRead, PermProductWrite,
		PermStockRead, PermStockWrite, PermStockAdjust, PermStockBulk,
	),
	RoleAccountant: setOf(
		PermProductRead,
		PermStockRead,
		PermInvoiceRead, PermInvoicePayment, PermInvoiceExport,
	),
}

func setOf(perms ...Permission) map[Permission]struct{} {
	s := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	_, ok := rolePermissions[Role(role)]
	return ok
}

// Roles returns all known roles, sorted.
func Roles() []Role {
	roles := make([]Role, 0, len(rolePermissions))
	for r := range rolePermissions {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Has reports whether role grants perm. Unknown roles grant nothing.
func Has(role string, perm Permission) bool {
	perms, ok := rolePermissions[Role(role)]
	if !ok {
		return false
	}
	_, ok = perms[perm]
	return ok
}

// PermissionsFor returns a sorted copy of the permissions granted to role.
func PermissionsFor(role string) []Permission {
	perms := rolePermissions[Role(role)]
	out := make([]Permission, 0, len(perms))
	for p := range perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
