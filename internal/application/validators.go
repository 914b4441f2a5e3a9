package application

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-tally/internal/domain"
)

// VoteInput is the caller-supplied part of a vote. Overall is never
// accepted from callers; it is always derived.
type VoteInput struct {
	UserID         int `validate:"gt=0"`
	ProblemID      int `validate:"gt=0"`
	Thinking       float64
	Implementation float64
	Quality        *float64
	Comment        string `validate:"max=4000"`
	Public         bool
}

// ProblemInput describes a new catalog problem.
type ProblemInput struct {
	Type                int    `validate:"gt=0"`
	Title               string `validate:"required,max=255"`
	URL                 string `validate:"omitempty,url"`
	Contest             string `validate:"max=255"`
	Description         string
	Tags                []string `validate:"max=50,dive,min=1,max=50"`
	KnowledgeDifficulty *string
	Meta                map[string]any
}

// UserInput describes a new user account.
type UserInput struct {
	Username     string `validate:"required,max=64"`
	PasswordHash string
	Info         string `validate:"max=1000"`
	LuoguID      string `validate:"max=32"`
	Approved     bool
}

// validateStruct runs tag validation and converts failures into a
// domain.ValidationError for entity.
func validateStruct(v *validator.Validate, entity string, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	ve := domain.NewValidationError(entity)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			ve.AddError(fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
		return ve
	}
	ve.AddError(err.Error())
	return ve
}

// validateVote checks a vote against tags and the configured bounds. It
// runs before any state is touched.
func (l *Ledger) validateVote(in VoteInput) error {
	ve := domain.NewValidationError("vote")
	if err := validateStruct(l.validate, "vote", in); err != nil {
		var tagErr *domain.ValidationError
		if errors.As(err, &tagErr) {
			ve.Errors = append(ve.Errors, tagErr.Errors...)
		}
	}
	checkRating := func(name string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			ve.AddError(name + " must be a finite number")
			return
		}
		if !l.cfg.Ratings.Contains(v) {
			ve.AddError(fmt.Sprintf("%s must be within [%g, %g]", name, l.cfg.Ratings.Min, l.cfg.Ratings.Max))
		}
	}
	checkRating("thinking", in.Thinking)
	checkRating("implementation", in.Implementation)
	if in.Quality != nil {
		q := *in.Quality
		switch {
		case math.IsNaN(q) || math.IsInf(q, 0):
			ve.AddError("quality must be a finite number")
		case !l.cfg.Quality.Contains(q):
			ve.AddError(fmt.Sprintf("quality must be within [%g, %g]", l.cfg.Quality.Min, l.cfg.Quality.Max))
		}
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}
