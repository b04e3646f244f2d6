package handler

import (
	"errors"
	"net/http"
	"reflect"

	"blendcaja/internal/apierror"
	"blendcaja/internal/caja"
	"blendcaja/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("json_invalido", "JSON invalido: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusUnprocessableEntity, apierror.WithCode("validacion", err.Error()))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondError maps domain errors to status codes. Anything unrecognised is a
// 500 with a generic message; the cause is only logged.
func respondError(c *gin.Context, err error) {
	codigo := caja.Codigo(err)
	switch {
	case caja.IsValidation(err):
		c.JSON(http.StatusUnprocessableEntity, apierror.WithCode(codigo, err.Error()))
	case caja.IsConflict(err):
		c.JSON(http.StatusConflict, apierror.WithCode(codigo, err.Error()))
	case service.IsNotFound(err):
		c.JSON(http.StatusNotFound, apierror.WithCode(codigo, err.Error()))
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("caja: unexpected error")
		c.JSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
	}
}
