package internal

type Category string

const (
	CategoryOperational Category = "Operational"
	CategoryCarpenter   Category = "Carpenter"
	CategoryEquipment   Category = "Equipment"
	CategoryMcCabe      Category = "McCabe"
	CategoryOther       Category = "Other"
)

var Categories = []Category{
	CategoryOperational,
	CategoryCarpenter,
	CategoryEquipment,
	CategoryMcCabe,
	CategoryOther,
}

type PaymentType string

const (
	PaymentReimbursement PaymentType = "Reimbursement"
	PaymentInvoice       PaymentType = "Invoice"
	PaymentStoreReceipt  PaymentType = "Store Receipt"
)

var PaymentTypes = []PaymentType{
	PaymentReimbursement,
	PaymentInvoice,
	PaymentStoreReceipt,
}

type SenderIdentity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Record is a canonical receipt: every required field is present and bounded.
type Record struct {
	Item          string          `json:"item"`
	Cost          string          `json:"cost"`
	Date          string          `json:"date"`
	Source        string          `json:"source"`
	ReceiptNumber string          `json:"receipt_number"`
	PaymentType   PaymentType     `json:"payment_type,omitempty"`
	Category      Category        `json:"category,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Sender        *SenderIdentity `json:"sender,omitempty"`
}

type MailMessage struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Date    string `json:"date"`
}

func (m MailMessage) Sender() SenderIdentity {
	return SenderIdentity{Name: m.Name, Email: m.Email}
}

// RawFields is untrusted model output keyed by field name.
type RawFields map[string]any

// Document is raw input handed to the pipeline by a caller.
type Document struct {
	Name        string
	Ext         string
	ContentType string
	Content     []byte
	// Text is filled by the router once the text layer has been read.
	Text string
}

type AppendStatus string

const (
	AppendSuccess   AppendStatus = "success"
	AppendDuplicate AppendStatus = "duplicate"
	AppendError     AppendStatus = "error"
)

type AppendResult struct {
	Status  AppendStatus `json:"status"`
	Message string       `json:"message"`
	Row     int          `json:"row,omitempty"`
}

type Strategy string

const (
	StrategyText   Strategy = "text"
	StrategyVision Strategy = "vision"
	StrategyNone   Strategy = "none"
)

type RunRow struct {
	ID            int    `json:"id"`
	TraceID       string `json:"trace_id"`
	SourceName    string `json:"source_name"`
	Strategy      string `json:"strategy"`
	Outcome       string `json:"outcome"`
	ReceiptNumber string `json:"receipt_number,omitempty"`
	MessageID     string `json:"message_id,omitempty"`
	TimingsJSON   string `json:"timings"`
	CreatedAt     string `json:"created_at"`
}

// MessageRow tracks what the mail processor did with one provider message.
type MessageRow struct {
	ID        int    `json:"id"`
	Provider  string `json:"provider"`
	MessageID string `json:"message_id"`
	Subject   string `json:"subject"`
	Sender    string `json:"sender"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	UpdatedAt string `json:"updated_at"`
}
