package phonepe

// Gateway order states as PhonePe reports them.
const (
	StatePending   = "PENDING"
	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
)

type InitiateRequest struct {
	MerchantOrderId string `json:"merchantOrderId"`
	AmountPaise     int64  `json:"amount"`
	RedirectUrl     string `json:"redirectUrl"`
}

type InitiateResponse struct {
	OrderId     string `json:"orderId"`
	State       string `json:"state"`
	RedirectUrl string `json:"redirectUrl"`
	ExpireAt    int64  `json:"expireAt"`
}

type PaymentDetail struct {
	TransactionId string `json:"transactionId"`
	PaymentMode   string `json:"paymentMode"`
	State         string `json:"state"`
	AmountPaise   int64  `json:"amount"`
}

type OrderStatusResponse struct {
	OrderId        string          `json:"orderId"`
	State          string          `json:"state"`
	AmountPaise    int64           `json:"amount"`
	PaymentDetails []PaymentDetail `json:"paymentDetails"`
}

type RefundRequest struct {
	MerchantRefundId string `json:"merchantRefundId"`
	OriginalOrderId  string `json:"originalMerchantOrderId"`
	AmountPaise      int64  `json:"amount"`
}

type RefundResponse struct {
	RefundId string `json:"refundId"`
	State    string `json:"state"`
}
