package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"zara-assistant-be/pkg/rag"
)

var validate = validator.New()

// ProductionArgs drives production.timeseries.
type ProductionArgs struct {
	Start   string `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End     string `json:"end" validate:"omitempty,datetime=2006-01-02"`
	GroupBy string `json:"groupby" validate:"omitempty,oneof=day week month"`
	Block   string `json:"block" validate:"omitempty,max=64"`
	Well    string `json:"well" validate:"omitempty,max=64"`
}

func (a *ProductionArgs) applyDefaults() {
	a.Start = orDefault(a.Start, "2024-01-01")
	a.End = orDefault(a.End, "2025-12-31")
	a.GroupBy = orDefault(a.GroupBy, "month")
}

// CSVArgs drives csv.timeseries. Value is upper-cased before validation.
type CSVArgs struct {
	DateCol string `json:"date_col" validate:"omitempty,max=64"`
	Value   string `json:"value" validate:"omitempty,oneof=BORE_OIL_VOL BORE_GAS_VOL BORE_WAT_VOL"`
	Start   string `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End     string `json:"end" validate:"omitempty,datetime=2006-01-02"`
	GroupBy string `json:"groupby" validate:"omitempty,oneof=day week month"`
	Block   string `json:"block" validate:"omitempty,max=64"`
	Well    string `json:"well" validate:"omitempty,max=64"`
}

func (a *CSVArgs) applyDefaults() {
	a.Value = strings.ToUpper(orDefault(a.Value, "BORE_OIL_VOL"))
	a.Start = orDefault(a.Start, "2007-01-01")
	a.End = orDefault(a.End, "2025-12-31")
	a.GroupBy = orDefault(a.GroupBy, "month")
}

// SearchArgs drives files.search.
type SearchArgs struct {
	Q string `json:"q" validate:"required,max=200"`
}

func (a *SearchArgs) applyDefaults() {
	a.Q = strings.TrimSpace(a.Q)
}

type defaulter interface {
	applyDefaults()
}

// bindArgs decodes the planner's loose argument map into dst, fills defaults
// and validates. All failures wrap rag.ErrToolArgumentInvalid.
func bindArgs(raw map[string]interface{}, dst defaulter) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", rag.ErrToolArgumentInvalid, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: %s must be a %s", rag.ErrToolArgumentInvalid, typeErr.Field, typeErr.Type)
		}
		return fmt.Errorf("%w: %v", rag.ErrToolArgumentInvalid, err)
	}

	dst.applyDefaults()

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", rag.ErrToolArgumentInvalid, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", rag.ErrToolArgumentInvalid, err)
	}
	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
