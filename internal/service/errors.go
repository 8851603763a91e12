package service

import "errors"

// Domain errors. The text is the stable name returned to clients.
var (
	ErrNotFound = errors.New("not found")

	ErrInvalidItem      = errors.New("INVALID.ITEM")
	ErrInvalidVariation = errors.New("INVALID.VARIATION")
	ErrInvalidOrder     = errors.New("INVALID.ORDER")
	ErrInvalidCustomer  = errors.New("INVALID.CUSTOMER")
	ErrInvalidLoan      = errors.New("INVALID.LOAN")
	ErrInvalidUnit      = errors.New("INVALID.INVENTORY")
	ErrInvalidQuantity  = errors.New("INVALID.QUANTITY")

	ErrOrderEmpty              = errors.New("ORDER_EMPTY")
	ErrOrderQuantity           = errors.New("ORDER_QUANTITY")
	ErrOrderExceedDownPayment  = errors.New("ORDER_EXCEEDDOWNPAYMENT")
	ErrOrderForbidden          = errors.New("ORDER_FORBIDDEN")
	ErrOrderDetailMismatch     = errors.New("ORDERDETAIL_MISMATCH")
	ErrInventoryUnavailable    = errors.New("INVENTORY_UNAVAILABLE")
	ErrInventoryWrongVariation = errors.New("INVENTORY_INCORRECTVARIATION")

	ErrCartConflict = errors.New("CART_CONFLICT")

	ErrPaymentGateway = errors.New("PAYMENT_GATEWAY")
	ErrUnknownEvent   = errors.New("WEBHOOK_UNKNOWN_EVENT")
)
