package domain

type CustomerRole string

const (
	CustomerRoleCustomer CustomerRole = "CUSTOMER"
	CustomerRoleAdmin    CustomerRole = "ADMIN"
)

type Customer struct {
	ID          int32        `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name"`
	Role        CustomerRole `json:"role"`
	// PaymentRef and PaymentMethodRef identify the customer and their
	// default card at the payment gateway.
	PaymentRef       string `json:"payment_ref"`
	PaymentMethodRef string `json:"payment_method_ref"`
	CreatedOn        string `json:"created_on"`
}

func (c *Customer) IsAdmin() bool {
	return c.Role == CustomerRoleAdmin
}
