package legislation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/go-querystring/query"
)

// DateLayout is the layout of date filters on the wire.
const DateLayout = "2006-01-02"

// MaxLimit is the largest page size the API accepts.
const MaxLimit = 100

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).Known()
	})
	_ = validate.RegisterValidation("legtype", func(fl validator.FieldLevel) bool {
		return Type(fl.Field().String()).Valid()
	})
}

var errorMessages = map[string]string{
	"status":   "%s must be a known status",
	"legtype":  "%s must be federal, state or executive",
	"datetime": "%s must be a date formatted YYYY-MM-DD",
	"max":      "%s is too long",
	"min":      "%s is too small",
	"gte":      "%s is too small",
	"lte":      "%s is too large",
	"required": "%s is required",
}

// validationError turns validator errors into one readable error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		format, ok := errorMessages[fe.Tag()]
		if !ok {
			format = "%s is invalid"
		}
		msgs = append(msgs, fmt.Sprintf(format, fe.Field()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Filters narrows a listing.
type Filters struct {
	Search    string `url:"search,omitempty" json:"search,omitempty" validate:"max=200"`
	Status    Status `url:"status,omitempty" json:"status,omitempty" validate:"omitempty,status"`
	StartDate string `url:"start_date,omitempty" json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `url:"end_date,omitempty" json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Validate checks field formats and that the date range is ordered.
func (f Filters) Validate() error {
	if err := validate.Struct(f); err != nil {
		return validationError(err)
	}
	// YYYY-MM-DD strings order lexically.
	if f.StartDate != "" && f.EndDate != "" && f.EndDate < f.StartDate {
		return fmt.Errorf("EndDate %s is before StartDate %s", f.EndDate, f.StartDate)
	}
	return nil
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// String is a stable representation used in query keys.
func (f Filters) String() string {
	v, err := query.Values(f)
	if err != nil {
		return ""
	}
	return v.Encode()
}

// ListOptions are the query parameters of a listing request.
type ListOptions struct {
	Page  int `url:"page" validate:"gte=1"`
	Limit int `url:"limit" validate:"gte=1,lte=100"`
	Filters
}

// Values validates the options and encodes them as query parameters.
func (o ListOptions) Values() (url.Values, error) {
	if err := validate.Struct(o); err != nil {
		return nil, validationError(err)
	}
	if err := o.Filters.Validate(); err != nil {
		return nil, err
	}
	v, err := query.Values(o)
	if err != nil {
		return nil, fmt.Errorf("encode list options: %w", err)
	}
	return v, nil
}

// SearchOptions are the query parameters of a search request.
type SearchOptions struct {
	Query string `url:"q" validate:"required,max=200"`
	Type  Type   `url:"type,omitempty" validate:"omitempty,legtype"`
}

// Values validates the options and encodes them as query parameters.
func (o SearchOptions) Values() (url.Values, error) {
	if err := validate.Struct(o); err != nil {
		return nil, validationError(err)
	}
	v, err := query.Values(o)
	if err != nil {
		return nil, fmt.Errorf("encode search options: %w", err)
	}
	return v, nil
}
