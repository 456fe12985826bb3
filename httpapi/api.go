// Package httpapi is the thin JSON adapter over the core services. It parses
// payloads, calls the service layer, and maps the error taxonomy to HTTP
// status codes; no business rules live here.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"polisync/agent"
	"polisync/claim"
	"polisync/customer"
	"polisync/fault"
	"polisync/policy"
	"polisync/reconcile"
	"polisync/vehicle"
)

// CustomerService is the customer surface the API mounts.
type CustomerService interface {
	Create(ctx context.Context, params customer.CreateParams) (customer.Customer, error)
	Update(ctx context.Context, customerID any, fields map[string]any) (customer.Customer, error)
	Deactivate(ctx context.Context, customerID any) error
}

type PolicyService interface {
	Create(ctx context.Context, params policy.CreateParams) (policy.Policy, error)
}

type ClaimService interface {
	Create(ctx context.Context, params claim.CreateParams) (claim.Claim, error)
}

type AgentRepository interface {
	Create(ctx context.Context, params agent.CreateParams) (agent.Agent, error)
	Get(ctx context.Context, agentID any) (agent.Agent, error)
}

type VehicleRepository interface {
	Create(ctx context.Context, params vehicle.CreateParams) (vehicle.Vehicle, error)
	ListInsured(ctx context.Context) ([]vehicle.Vehicle, error)
}

type Reconciler interface {
	Run(ctx context.Context) (reconcile.Summary, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type API struct {
	Customers  CustomerService
	Policies   PolicyService
	Claims     ClaimService
	Agents     AgentRepository
	Vehicles   VehicleRepository
	Reconciler Reconciler
	Graph      Pinger
}

// Handler builds the routed, CORS-wrapped handler.
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", a.health).Methods(http.MethodGet)
	r.HandleFunc("/graph/health", a.graphHealth).Methods(http.MethodGet)

	r.HandleFunc("/customers", a.createCustomer).Methods(http.MethodPost)
	r.HandleFunc("/customers/{id}", a.updateCustomer).Methods(http.MethodPatch)
	r.HandleFunc("/customers/{id}", a.deactivateCustomer).Methods(http.MethodDelete)

	r.HandleFunc("/policies", a.createPolicy).Methods(http.MethodPost)
	r.HandleFunc("/claims", a.createClaim).Methods(http.MethodPost)
	r.HandleFunc("/agents", a.createAgent).Methods(http.MethodPost)
	r.HandleFunc("/agents/{id}", a.getAgent).Methods(http.MethodGet)

	r.HandleFunc("/vehicles", a.createVehicle).Methods(http.MethodPost)
	r.HandleFunc("/vehicles/insured", a.listInsuredVehicles).Methods(http.MethodGet)

	r.HandleFunc("/reconcile", a.runReconciliation).Methods(http.MethodPost)

	return cors.Default().Handler(r)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) graphHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.Graph.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type customerPayload struct {
	CustomerID any    `json:"customer_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Active     any    `json:"active"`
}

func (a *API) createCustomer(w http.ResponseWriter, r *http.Request) {
	var p customerPayload
	if !decode(w, r, &p) {
		return
	}
	created, err := a.Customers.Create(r.Context(), customer.CreateParams{
		CustomerID: p.CustomerID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Email:      p.Email,
		Phone:      p.Phone,
		Active:     p.Active,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if !decode(w, r, &fields) {
		return
	}
	updated, err := a.Customers.Update(r.Context(), mux.Vars(r)["id"], fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) deactivateCustomer(w http.ResponseWriter, r *http.Request) {
	if err := a.Customers.Deactivate(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type policyPayload struct {
	PolicyNumber   any      `json:"policy_number"`
	CustomerID     any      `json:"customer_id"`
	AgentID        any      `json:"agent_id"`
	Type           string   `json:"type"`
	StartDate      any      `json:"start_date"`
	EndDate        any      `json:"end_date"`
	MonthlyPremium *float64 `json:"monthly_premium"`
	TotalCoverage  *float64 `json:"total_coverage"`
	Status         string   `json:"status"`
}

func (a *API) createPolicy(w http.ResponseWriter, r *http.Request) {
	var p policyPayload
	if !decode(w, r, &p) {
		return
	}
	created, err := a.Policies.Create(r.Context(), policy.CreateParams{
		PolicyNumber:   p.PolicyNumber,
		CustomerID:     p.CustomerID,
		AgentID:        p.AgentID,
		Type:           p.Type,
		StartDate:      p.StartDate,
		EndDate:        p.EndDate,
		MonthlyPremium: p.MonthlyPremium,
		TotalCoverage:  p.TotalCoverage,
		Status:         p.Status,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type claimPayload struct {
	PolicyNumber   any      `json:"policy_number"`
	Type           string   `json:"type"`
	AmountEstimate *float64 `json:"amount_estimate"`
	Description    string   `json:"description"`
	Status         string   `json:"status"`
	Date           any      `json:"date"`
}

func (a *API) createClaim(w http.ResponseWriter, r *http.Request) {
	var p claimPayload
	if !decode(w, r, &p) {
		return
	}
	created, err := a.Claims.Create(r.Context(), claim.CreateParams{
		PolicyNumber:   p.PolicyNumber,
		Type:           p.Type,
		AmountEstimate: p.AmountEstimate,
		Description:    p.Description,
		Status:         p.Status,
		Date:           p.Date,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type agentPayload struct {
	AgentID any    `json:"agent_id"`
	Name    string `json:"name"`
	Active  any    `json:"active"`
}

func (a *API) createAgent(w http.ResponseWriter, r *http.Request) {
	var p agentPayload
	if !decode(w, r, &p) {
		return
	}
	created, err := a.Agents.Create(r.Context(), agent.CreateParams{AgentID: p.AgentID, Name: p.Name, Active: p.Active})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) getAgent(w http.ResponseWriter, r *http.Request) {
	found, err := a.Agents.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

type vehiclePayload struct {
	Plate      string `json:"plate"`
	CustomerID any    `json:"customer_id"`
	Make       string `json:"make"`
	Model      string `json:"model"`
	Insured    any    `json:"insured"`
}

func (a *API) createVehicle(w http.ResponseWriter, r *http.Request) {
	var p vehiclePayload
	if !decode(w, r, &p) {
		return
	}
	created, err := a.Vehicles.Create(r.Context(), vehicle.CreateParams{
		Plate:      p.Plate,
		CustomerID: p.CustomerID,
		Make:       p.Make,
		Model:      p.Model,
		Insured:    p.Insured,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) listInsuredVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := a.Vehicles.ListInsured(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if vehicles == nil {
		vehicles = []vehicle.Vehicle{}
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func (a *API) runReconciliation(w http.ResponseWriter, r *http.Request) {
	sum, err := a.Reconciler.Run(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"processed": sum.Processed, "skipped": sum.Skipped})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed_json"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	code := fault.CodeOf(err)
	if code == "" {
		code = "internal_error"
	}
	writeJSON(w, statusFor(fault.KindOf(err)), map[string]any{"error": code})
}

func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.Validation:
		return http.StatusBadRequest
	case fault.Conflict:
		return http.StatusConflict
	case fault.NotFound:
		return http.StatusNotFound
	case fault.Unavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
