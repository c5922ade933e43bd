package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/microloan/internal/lending"
	"github.com/iwvelando/microloan/pkg/allocation"
	"github.com/iwvelando/microloan/pkg/loans"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type calculationRequest struct {
	Product      string             `json:"product,omitempty"`
	Principal    float64            `json:"principal"`
	TermMonths   int                `json:"termMonths"`
	AnnualRate   *float64           `json:"annualRate,omitempty"`
	Frequency    loans.Frequency    `json:"frequency,omitempty"`
	InterestType loans.InterestType `json:"interestType,omitempty"`
	FirstDueDate string             `json:"firstDueDate,omitempty"`
}

// input resolves the request against the product catalog. Explicit rate and
// interest type override the product's.
func (h *handler) input(req calculationRequest) (loans.InstallmentInput, error) {
	if req.Frequency == "" {
		req.Frequency = loans.Monthly
	}
	in := loans.InstallmentInput{
		Principal:    req.Principal,
		TermMonths:   req.TermMonths,
		Frequency:    req.Frequency,
		InterestType: loans.Flat,
	}
	if name := strings.TrimSpace(req.Product); name != "" {
		product, ok := h.svc.Config.Catalog().Find(name)
		if !ok {
			return loans.InstallmentInput{}, fmt.Errorf("%w: %q", lending.ErrUnknownProduct, name)
		}
		in = product.Input(req.Principal, req.TermMonths, req.Frequency)
	} else if req.AnnualRate == nil {
		return loans.InstallmentInput{}, badRequest("annualRate or product is required")
	}
	if req.AnnualRate != nil {
		in.AnnualRate = *req.AnnualRate
	}
	if req.InterestType != "" {
		in.InterestType = req.InterestType
	}
	return in, nil
}

func (h *handler) handleCalculateInstallment(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCalculateInstallment"
	var req calculationRequest
	if !h.decode(w, r, &req, op) {
		return
	}
	in, err := h.input(req)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	quote, err := h.svc.Quotes.Quote(r.Context(), in)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, quote)
}

type scheduleTotals struct {
	Payment   float64 `json:"payment" yaml:"payment"`
	Principal float64 `json:"principal" yaml:"principal"`
	Interest  float64 `json:"interest" yaml:"interest"`
}

type scheduleResponse struct {
	Input    loans.InstallmentInput `json:"input"`
	Quote    loans.Quote            `json:"quote"`
	Totals   scheduleTotals         `json:"totals"`
	Schedule []loans.Installment    `json:"schedule"`
}

func (h *handler) handleCalculateSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCalculateSchedule"
	var req calculationRequest
	if !h.decode(w, r, &req, op) {
		return
	}
	in, err := h.input(req)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	firstDue, err := optionalDate("firstDueDate", req.FirstDueDate, time.Time{})
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	if firstDue.IsZero() {
		firstDue = loans.DueDate(h.svc.Now(), in.Frequency, 2)
	}

	quote, err := h.svc.Quotes.Quote(r.Context(), in)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	schedule, err := loans.NewScheduleGenerator(h.logger).Generate(in, firstDue)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	resp := scheduleResponse{Input: in, Quote: quote, Schedule: schedule}
	resp.Totals.Payment, resp.Totals.Principal, resp.Totals.Interest = loans.Totals(schedule)

	if r.URL.Query().Get("format") != "yaml" {
		h.writeJSON(w, http.StatusOK, resp)
		return
	}
	out, err := marshalOrderedYAML([]orderedItem{
		{key: "input", value: in},
		{key: "quote", value: quote},
		{key: "totals", value: resp.Totals},
		{key: "schedule", value: schedule},
	})
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to encode schedule: %v", err), op)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		h.logger.Error("failed to write YAML response", zap.String("op", op), zap.Error(err))
	}
}

type payoffRequest struct {
	RemainingPrincipal float64 `json:"remainingPrincipal"`
	TermMonths         int     `json:"termMonths"`
	StartDate          string  `json:"startDate"`
	AsOf               string  `json:"asOf,omitempty"`
	DiscountRate       float64 `json:"discountRate,omitempty"`
}

func (h *handler) handleCalculatePayoff(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCalculatePayoff"
	var req payoffRequest
	if !h.decode(w, r, &req, op) {
		return
	}
	if strings.TrimSpace(req.StartDate) == "" {
		h.respondErr(w, badRequest("startDate is required"), op)
		return
	}
	start, err := optionalDate("startDate", req.StartDate, time.Time{})
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	asOf, err := optionalDate("asOf", req.AsOf, h.svc.Now())
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	if req.DiscountRate == 0 {
		req.DiscountRate = h.svc.Config.Lending.EarlyRepaymentDiscount
	}
	payoff, err := loans.CalculateEarlyRepayment(loans.EarlyRepaymentInput{
		RemainingPrincipal: req.RemainingPrincipal,
		TermMonths:         req.TermMonths,
		StartDate:          start,
		DiscountRate:       req.DiscountRate,
	}, asOf)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, payoff)
}

type allocationRequest struct {
	Amount      float64                `json:"amount"`
	Policy      string                 `json:"policy,omitempty"`
	Outstanding allocation.Outstanding `json:"outstanding"`
}

func (h *handler) handleCalculateAllocation(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCalculateAllocation"
	var req allocationRequest
	if !h.decode(w, r, &req, op) {
		return
	}
	if req.Policy == "" {
		req.Policy = h.svc.Config.Lending.DefaultPolicy
	}
	policy, err := allocation.ParsePolicy(req.Policy)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	split, err := allocation.Allocate(req.Amount, policy, h.svc.Config.Lending.Allocation, req.Outstanding)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, split)
}

// handleConfigExport returns the lending rules in effect as YAML that can
// be pasted into a configuration file.
func (h *handler) handleConfigExport(w http.ResponseWriter, r *http.Request) {
	out, err := marshalOrderedYAML([]orderedItem{
		{key: "lending", value: h.svc.Config.Lending},
	})
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to encode configuration: %v", err), "server.handleConfigExport")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"configYaml": string(out),
	})
}

func marshalOrderedYAML(items []orderedItem) ([]byte, error) {
	return yaml.Marshal(orderedDocument{items: items})
}

type orderedDocument struct {
	items []orderedItem
}

type orderedItem struct {
	key   string
	value interface{}
}

func (o orderedDocument) MarshalYAML() (interface{}, error) {
	mapNode := &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
	}

	for _, item := range o.items {
		keyNode := &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: item.key,
		}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(item.value); err != nil {
			return nil, err
		}
		mapNode.Content = append(mapNode.Content, keyNode, valueNode)
	}

	return mapNode, nil
}
