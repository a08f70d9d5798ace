package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/satheeshds/lexbill/models"
	"github.com/shopspring/decimal"
)

const tariffSelectQuery = `SELECT id, jurisdiction, kind, name, price, created_at, updated_at FROM tariffs`

func scanTariff(scanner interface{ Scan(...any) error }) (models.Tariff, error) {
	var t models.Tariff
	err := scanner.Scan(&t.ID, &t.Jurisdiction, &t.Kind, &t.Name, &t.Price, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func listTariffs(ctx context.Context, jurisdiction string) ([]models.Tariff, error) {
	rows, err := DB.QueryContext(ctx, tariffSelectQuery+" WHERE jurisdiction = $1 ORDER BY kind, name", jurisdiction)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tariffs []models.Tariff
	for rows.Next() {
		t, err := scanTariff(rows)
		if err != nil {
			return nil, err
		}
		tariffs = append(tariffs, t)
	}
	return tariffs, rows.Err()
}

// ListTariffs lists stored tariffs of a jurisdiction
// @Summary      List tariffs
// @Description  Get the procedure and service prices stored for a jurisdiction.
// @Tags         tariffs
// @Produce      json
// @Param        jurisdiction  query     string  false  "Jurisdiction (default: default)"
// @Success      200           {object}  Response{data=[]models.Tariff}
// @Router       /tariffs [get]
// @Security     BasicAuth
func ListTariffs(w http.ResponseWriter, r *http.Request) {
	jurisdiction := r.URL.Query().Get("jurisdiction")
	if jurisdiction == "" {
		jurisdiction = models.DefaultJurisdiction
	}
	tariffs, err := listTariffs(r.Context(), jurisdiction)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tariffs == nil {
		tariffs = []models.Tariff{}
	}
	writeJSON(w, http.StatusOK, tariffs)
}

type catalogData struct {
	Jurisdiction string                     `json:"jurisdiction"`
	Fallback     decimal.Decimal            `json:"fallback"`
	Procedures   map[string]decimal.Decimal `json:"procedures"`
	Services     map[string]decimal.Decimal `json:"services"`
}

// GetCatalog returns the effective catalog of a jurisdiction
// @Summary      Get effective catalog
// @Description  Get the built-in catalog overlaid with the jurisdiction's stored tariffs, as used to price new lines.
// @Tags         tariffs
// @Produce      json
// @Param        jurisdiction  query     string  false  "Jurisdiction (default: default)"
// @Success      200           {object}  Response{data=catalogData}
// @Router       /tariffs/catalog [get]
// @Security     BasicAuth
func GetCatalog(w http.ResponseWriter, r *http.Request) {
	jurisdiction := r.URL.Query().Get("jurisdiction")
	if jurisdiction == "" {
		jurisdiction = models.DefaultJurisdiction
	}
	engine, err := engineFor(r.Context(), jurisdiction)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	c := engine.Catalog()
	writeJSON(w, http.StatusOK, catalogData{
		Jurisdiction: jurisdiction,
		Fallback:     c.Fallback,
		Procedures:   c.Procedures,
		Services:     c.Services,
	})
}

// UpsertTariff creates or replaces a tariff
// @Summary      Upsert tariff
// @Description  Set the price of a procedure type or general service for a jurisdiction.
// @Tags         tariffs
// @Accept       json
// @Produce      json
// @Param        tariff  body      models.TariffInput  true  "Tariff"
// @Success      200     {object}  Response{data=models.Tariff}
// @Failure      400     {object}  Response{error=string}
// @Router       /tariffs [put]
// @Security     BasicAuth
func UpsertTariff(w http.ResponseWriter, r *http.Request) {
	var input models.TariffInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := input.Validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	t, err := scanTariff(DB.QueryRowContext(r.Context(), `INSERT INTO tariffs (jurisdiction, kind, name, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (jurisdiction, kind, name) DO UPDATE SET price = EXCLUDED.price, updated_at = now()
		RETURNING id, jurisdiction, kind, name, price, created_at, updated_at`,
		input.Jurisdiction, input.Kind, input.Name, input.Price))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteTariff deletes a tariff
// @Summary      Delete tariff
// @Description  Remove a stored tariff; the built-in price applies again.
// @Tags         tariffs
// @Produce      json
// @Param        id   path      int  true  "Tariff ID"
// @Success      200  {object}  Response{data=map[string]string}
// @Failure      404  {object}  Response{error=string}
// @Router       /tariffs/{id} [delete]
// @Security     BasicAuth
func DeleteTariff(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := DB.ExecContext(r.Context(), "DELETE FROM tariffs WHERE id = $1", id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "tariff not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
