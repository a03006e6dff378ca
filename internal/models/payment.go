package models

// PaymentStatus enumerates the settlement states of a billing record.
type PaymentStatus string

const (
	PaymentLunas              PaymentStatus = "Lunas"
	PaymentMenungguVerifikasi PaymentStatus = "Menunggu Verifikasi"
	PaymentBelumLunas         PaymentStatus = "Belum Lunas"
)

// Valid reports whether the value is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentLunas, PaymentMenungguVerifikasi, PaymentBelumLunas:
		return true
	}
	return false
}

// PaymentRecord is one billing line for a santri, as returned by the
// billing function. Timestamp is Unix milliseconds.
type PaymentRecord struct {
	PaymentName string        `json:"paymentName"`
	Paid        int64         `json:"paid"`
	Total       int64         `json:"total"`
	Status      PaymentStatus `json:"status"`
	Timestamp   int64         `json:"timestamp"`
	SantriID    string        `json:"santriId"`
}

// PaymentViewPhase is the lifecycle phase of a viewer's payment history.
type PaymentViewPhase string

const (
	PaymentViewLoading PaymentViewPhase = "loading"
	PaymentViewContent PaymentViewPhase = "content"
	PaymentViewEmpty   PaymentViewPhase = "empty"
	PaymentViewError   PaymentViewPhase = "error"
)

// PaymentView is what a polling client sees: the phase plus, for content,
// the records sorted newest first, and for empty, when the next automatic
// refresh is due.
type PaymentView struct {
	Phase         PaymentViewPhase `json:"phase"`
	Records       []PaymentRecord  `json:"records,omitempty"`
	Message       string           `json:"message,omitempty"`
	NextRefreshAt int64            `json:"nextRefreshAt,omitempty"`
}

// SubmitPaymentRequest starts an online payment for a billing line.
type SubmitPaymentRequest struct {
	PaymentName string `json:"paymentName" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
}

// SubmitPaymentResponse carries the gateway token and redirect URL.
type SubmitPaymentResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirectUrl"`
}
