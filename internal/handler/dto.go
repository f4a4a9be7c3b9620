package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/service"
	"github.com/mmynk/flatlease/internal/storage"
)

// Wire representations. Dates are YYYY-MM-DD strings, money is a decimal
// string, timestamps are Unix seconds.

type buildingJSON struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Address           string          `json:"address,omitempty"`
	DefaultMonthlyFee decimal.Decimal `json:"defaultMonthlyFee"`
	CreatedAt         int64           `json:"createdAt"`
}

func toBuildingJSON(b *models.Building) buildingJSON {
	return buildingJSON{
		ID:                b.ID,
		Name:              b.Name,
		Address:           b.Address,
		DefaultMonthlyFee: b.DefaultMonthlyFee,
		CreatedAt:         b.CreatedAt,
	}
}

type flatJSON struct {
	ID          string          `json:"id"`
	BuildingID  string          `json:"buildingId"`
	Number      string          `json:"number"`
	TenantName  string          `json:"tenantName,omitempty"`
	TenantEmail string          `json:"tenantEmail,omitempty"`
	MonthlyRent decimal.Decimal `json:"monthlyRent"`
	Active      bool            `json:"active"`
	CreatedAt   int64           `json:"createdAt"`
}

func toFlatJSON(f *models.Flat) flatJSON {
	return flatJSON{
		ID:          f.ID,
		BuildingID:  f.BuildingID,
		Number:      f.Number,
		TenantName:  f.TenantName,
		TenantEmail: f.TenantEmail,
		MonthlyRent: f.MonthlyRent,
		Active:      f.Active,
		CreatedAt:   f.CreatedAt,
	}
}

type contractJSON struct {
	ID                 string          `json:"id"`
	FlatID             string          `json:"flatId"`
	TenantName         string          `json:"tenantName"`
	TenantContact      string          `json:"tenantContact,omitempty"`
	TenantEmail        string          `json:"tenantEmail,omitempty"`
	StartDate          string          `json:"startDate"`
	EndDate            string          `json:"endDate"`
	MonthlyRent        decimal.Decimal `json:"monthlyRent"`
	SecurityDeposit    decimal.Decimal `json:"securityDeposit"`
	DayOfMonth         int             `json:"dayOfMonth"`
	Status             string          `json:"status"`
	DuesGenerated      bool            `json:"duesGenerated"`
	PreviousContractID string          `json:"previousContractId,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty"`
	CancellationDate   string          `json:"cancellationDate,omitempty"`
	CancelledBy        string          `json:"cancelledBy,omitempty"`
	DepositRefunded    bool            `json:"depositRefunded,omitempty"`
	StatusChangedAt    int64           `json:"statusChangedAt"`
	StatusChangedBy    string          `json:"statusChangedBy"`
	StatusChangeReason string          `json:"statusChangeReason,omitempty"`
	CreatedAt          int64           `json:"createdAt"`
	UpdatedAt          int64           `json:"updatedAt"`
}

func toContractJSON(c *models.Contract) contractJSON {
	out := contractJSON{
		ID:                 c.ID,
		FlatID:             c.FlatID,
		TenantName:         c.TenantName,
		TenantContact:      c.TenantContact,
		TenantEmail:        c.TenantEmail,
		StartDate:          models.FormatDate(c.StartDate),
		EndDate:            models.FormatDate(c.EndDate),
		MonthlyRent:        c.MonthlyRent,
		SecurityDeposit:    c.SecurityDeposit,
		DayOfMonth:         c.DayOfMonth,
		Status:             string(c.Status),
		DuesGenerated:      c.DuesGenerated,
		PreviousContractID: c.PreviousContractID,
		Notes:              c.Notes,
		CancellationReason: c.CancellationReason,
		CancelledBy:        c.CancelledBy,
		DepositRefunded:    c.DepositRefunded,
		StatusChangedAt:    c.StatusChangedAt,
		StatusChangedBy:    c.StatusChangedBy,
		StatusChangeReason: c.StatusChangeReason,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
	if c.CancellationDate != nil {
		out.CancellationDate = models.FormatDate(*c.CancellationDate)
	}
	return out
}

func toContractsJSON(cs []*models.Contract) []contractJSON {
	out := make([]contractJSON, len(cs))
	for i, c := range cs {
		out[i] = toContractJSON(c)
	}
	return out
}

type dueJSON struct {
	ID                           string          `json:"id"`
	FlatID                       string          `json:"flatId"`
	ContractID                   string          `json:"contractId,omitempty"`
	DueDate                      string          `json:"dueDate"`
	DueAmount                    decimal.Decimal `json:"dueAmount"`
	BaseRent                     decimal.Decimal `json:"baseRent"`
	AdditionalCharges            decimal.Decimal `json:"additionalCharges"`
	AdditionalChargesDescription string          `json:"additionalChargesDescription,omitempty"`
	PaidAmount                   decimal.Decimal `json:"paidAmount"`
	Outstanding                  decimal.Decimal `json:"outstanding"`
	PaymentDate                  string          `json:"paymentDate,omitempty"`
	Status                       string          `json:"status"`
	Description                  string          `json:"description"`
	Source                       string          `json:"source"`
}

func toDueJSON(d *models.MonthlyDue) dueJSON {
	out := dueJSON{
		ID:                           d.ID,
		FlatID:                       d.FlatID,
		ContractID:                   d.ContractID,
		DueDate:                      models.FormatDate(d.DueDate),
		DueAmount:                    d.DueAmount,
		BaseRent:                     d.BaseRent,
		AdditionalCharges:            d.AdditionalCharges,
		AdditionalChargesDescription: d.AdditionalChargesDescription,
		PaidAmount:                   d.PaidAmount,
		Outstanding:                  d.Outstanding(),
		Status:                       string(d.Status),
		Description:                  d.Description,
		Source:                       string(d.Source),
	}
	if d.PaymentDate != nil {
		out.PaymentDate = models.FormatDate(*d.PaymentDate)
	}
	return out
}

func toDuesJSON(ds []*models.MonthlyDue) []dueJSON {
	out := make([]dueJSON, len(ds))
	for i, d := range ds {
		out[i] = toDueJSON(d)
	}
	return out
}

type paymentJSON struct {
	ID              string           `json:"id"`
	FlatID          string           `json:"flatId"`
	Amount          decimal.Decimal  `json:"amount"`
	PaymentDate     time.Time        `json:"paymentDate"`
	Method          string           `json:"method"`
	ReferenceNumber string           `json:"referenceNumber,omitempty"`
	ReceiptNumber   string           `json:"receiptNumber,omitempty"`
	Description     string           `json:"description,omitempty"`
	RecordedBy      string           `json:"recordedBy"`
	Version         int              `json:"version"`
	CreatedAt       int64            `json:"createdAt"`
	Allocations     []allocationJSON `json:"allocations,omitempty"`
}

type allocationJSON struct {
	DueID  string          `json:"dueId"`
	Amount decimal.Decimal `json:"amount"`
}

func toPaymentJSON(p *models.Payment, allocs []*models.PaymentAllocation) paymentJSON {
	out := paymentJSON{
		ID:              p.ID,
		FlatID:          p.FlatID,
		Amount:          p.Amount,
		PaymentDate:     p.PaymentDate,
		Method:          string(p.Method),
		ReferenceNumber: p.ReferenceNumber,
		ReceiptNumber:   p.ReceiptNumber,
		Description:     p.Description,
		RecordedBy:      p.RecordedBy,
		Version:         p.Version,
		CreatedAt:       p.CreatedAt,
	}
	for _, a := range allocs {
		out.Allocations = append(out.Allocations, allocationJSON{DueID: a.DueID, Amount: a.Amount})
	}
	return out
}

type debtorJSON struct {
	Flat         flatJSON        `json:"flat"`
	TotalDebt    decimal.Decimal `json:"totalDebt"`
	OverdueCount int             `json:"overdueCount"`
	OldestDue    string          `json:"oldestDue"`
}

type statsJSON struct {
	BuildingID        string          `json:"buildingId"`
	CountByStatus     map[string]int  `json:"countByStatus"`
	TotalActiveRent   decimal.Decimal `json:"totalActiveRent"`
	FlatsWithContract int             `json:"flatsWithContract"`
}

func toStatsJSON(s *models.ContractStats) statsJSON {
	out := statsJSON{
		BuildingID:        s.BuildingID,
		CountByStatus:     make(map[string]int, len(s.CountByStatus)),
		TotalActiveRent:   s.TotalActiveRent,
		FlatsWithContract: s.FlatsWithContract,
	}
	for status, n := range s.CountByStatus {
		out.CountByStatus[string(status)] = n
	}
	return out
}

type sweepJSON struct {
	Sweep        string `json:"sweep"`
	Examined     int    `json:"examined"`
	Transitioned int    `json:"transitioned"`
	Failed       int    `json:"failed"`
}

func toSweepJSON(name string, r service.SweepResult) sweepJSON {
	return sweepJSON{Sweep: name, Examined: r.Examined, Transitioned: r.Transitioned, Failed: r.Failed}
}

type pageJSON[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func toContractPage(p storage.PageResult[*models.Contract], page storage.Page) pageJSON[contractJSON] {
	return pageJSON[contractJSON]{
		Items:  toContractsJSON(p.Items),
		Total:  p.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
}
