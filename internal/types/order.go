package types

import (
	"github.com/go-playground/validator/v10"
)

// OrderStatusProcessing is the only order status under which results may be
// composed or submitted.
const OrderStatusProcessing = "processing"

// Order is the subset of a backend order consumed by the result engine.
type Order struct {
	ID             ID          `json:"_id" validate:"required"`
	TrackingNumber string      `json:"TrackingNumber"`
	TotalPrice     float64     `json:"TotalPrice"`
	OrderStatus    string      `json:"OrderStatus"`
	CompanyName    string      `json:"companyName,omitempty"`
	Candidates     []Candidate `json:"candidates" validate:"dive"`
}

// Candidate is a person under background check within an order.
type Candidate struct {
	ID             ID              `json:"_id" validate:"required"`
	FullName       string          `json:"fullName"`
	Email          string          `json:"email" validate:"omitempty,email"`
	CompanyName    string          `json:"companyName,omitempty"`
	Services       []ServiceRef    `json:"services" validate:"dive"`
	ServiceResults []ServiceResult `json:"serviceResults"`
	SummaryResult  *SummaryResult  `json:"summaryResult,omitempty"`
}

// ServiceRef identifies one verification type a candidate must undergo.
type ServiceRef struct {
	ID          ID     `json:"_id" validate:"required"`
	DisplayName string `json:"title"`
}

// ServiceResult is a persisted per-service result.
type ServiceResult struct {
	ServiceID    ID     `json:"serviceId"`
	ResultFile   string `json:"resultFile,omitempty"`
	FileName     string `json:"fileName,omitempty"`
	ResultNotes  string `json:"resultNotes"`
	ResultStatus Status `json:"resultStatus"`
}

// SummaryResult is the persisted combined report of a candidate.
type SummaryResult struct {
	ResultFile     string `json:"resultFile,omitempty"`
	ResultFileName string `json:"resultFileName,omitempty"`
	Notes          string `json:"notes"`
	OverallStatus  Status `json:"overallStatus"`
}

// ServiceInfo is one entry of the service catalog.
type ServiceInfo struct {
	Title string `json:"title"`
}

// ServiceCatalog maps service ids to catalog entries.
type ServiceCatalog map[ID]ServiceInfo

// Validate checks the struct tags of the order and its candidates.
func (o *Order) Validate() error {
	validate := validator.New()
	return validate.Struct(o)
}

// Validate checks the struct tags of the candidate.
func (c *Candidate) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// FindCandidate returns the candidate with the given id.
func (o *Order) FindCandidate(id ID) (*Candidate, bool) {
	for i := range o.Candidates {
		if o.Candidates[i].ID == id {
			return &o.Candidates[i], true
		}
	}
	return nil, false
}

// Processing reports whether composition and submission are allowed.
func (o *Order) Processing() bool {
	return o.OrderStatus == OrderStatusProcessing
}

// ResultFor returns the persisted result of a service, if any.
func (c *Candidate) ResultFor(serviceID ID) (*ServiceResult, bool) {
	for i := range c.ServiceResults {
		if c.ServiceResults[i].ServiceID == serviceID {
			return &c.ServiceResults[i], true
		}
	}
	return nil, false
}

// HasResults reports whether the candidate has any persisted result.
func (c *Candidate) HasResults() bool {
	return len(c.ServiceResults) > 0 || c.SummaryResult != nil
}

// ServiceName returns the display name of a service, falling back to the catalog
// title and finally the id.
func (c *Candidate) ServiceName(serviceID ID, catalog ServiceCatalog) string {
	for _, svc := range c.Services {
		if svc.ID == serviceID && svc.DisplayName != "" {
			return svc.DisplayName
		}
	}
	if info, ok := catalog[serviceID]; ok && info.Title != "" {
		return info.Title
	}
	return serviceID.String()
}

// ApplyCatalog fills empty service display names from the catalog.
func (c *Candidate) ApplyCatalog(catalog ServiceCatalog) {
	for i := range c.Services {
		if c.Services[i].DisplayName != "" {
			continue
		}
		if info, ok := catalog[c.Services[i].ID]; ok {
			c.Services[i].DisplayName = info.Title
		}
	}
}
