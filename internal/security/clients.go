package security

const (
	PermOrdersRead    = "orders.read"
	PermOrdersWrite   = "orders.write"
	PermOrdersFulfil  = "orders.fulfil"
	PermCouponsManage = "coupons.manage"
	PermLoyaltyRedeem = "loyalty.redeem"
)

// In-memory client registry (replace with DB/config later)
type Client struct {
	ID      string
	Secret  string
	Perms   []string
	Enabled bool
	// SubjectFromRequest lets the client name the customer it acts for.
	SubjectFromRequest bool
}

var Clients = map[string]Client{
	"customer-app": {
		ID: "customer-app", Secret: "customer-app-secret", Enabled: true, SubjectFromRequest: true,
		Perms: []string{PermOrdersRead, PermOrdersWrite, PermLoyaltyRedeem},
	},
	"vendor-kiosk": {
		ID: "vendor-kiosk", Secret: "vendor-kiosk-secret", Enabled: true,
		Perms: []string{PermOrdersRead, PermOrdersFulfil},
	},
	"admin-console": {
		ID: "admin-console", Secret: "admin-console-secret", Enabled: true,
		Perms: []string{PermOrdersRead, PermCouponsManage},
	},
}
