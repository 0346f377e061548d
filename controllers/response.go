package controllers

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
)

// Response is the envelope of every JSON answer.
type Response struct {
	Status  bool                `json:"status"`
	Message string              `json:"message"`
	Data    any                 `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Meta    *models.Pagination  `json:"meta,omitempty"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Status: true, Message: message, Data: data})
}

func respondOK(c *gin.Context, data any) {
	respond(c, http.StatusOK, "success", data)
}

func respondCreated(c *gin.Context, data any) {
	respond(c, http.StatusCreated, "created", data)
}

func respondPage[T any](c *gin.Context, page *models.Page[T]) {
	c.JSON(http.StatusOK, Response{Status: true, Message: "success", Data: page.Items, Meta: &page.Pagination})
}

func respondFailure(c *gin.Context, status int, message string, fields map[string][]string) {
	c.AbortWithStatusJSON(status, Response{Status: false, Message: message, Errors: fields})
}

var (
	sqliteUnique = regexp.MustCompile(`UNIQUE constraint failed: [a-z_]+\.([a-z_]+)`)
	mysqlUnique  = regexp.MustCompile(`for key '(?:[a-z_]+\.)?(?:idx_[a-z]+_)?([a-z_]+)'`)
)

func duplicateField(err error) string {
	msg := err.Error()
	if m := sqliteUnique.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	if m := mysqlUnique.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return "base"
}

// respondError maps model errors to status codes; anything unrecognised is a 500.
func respondError(c *gin.Context, err error) {
	var verr *utils.ValidationError
	var berr *utils.BusinessRuleError
	switch {
	case errors.As(err, &verr):
		respondFailure(c, http.StatusUnprocessableEntity, "validation failed", verr.Fields)
	case utils.IsDuplicateKeyError(err):
		respondFailure(c, http.StatusUnprocessableEntity, "validation failed",
			map[string][]string{duplicateField(err): {"has already been taken"}})
	case errors.Is(err, utils.ErrorRecordNotFound):
		respondFailure(c, http.StatusNotFound, "record not found", nil)
	case errors.Is(err, utils.ErrUnauthorized):
		respondFailure(c, http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, utils.ErrForbidden):
		respondFailure(c, http.StatusForbidden, err.Error(), nil)
	case errors.As(err, &berr):
		respondFailure(c, http.StatusBadRequest, berr.Error(), nil)
	default:
		_ = c.Error(err)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(config.GetLogger(), "controllers", c.FullPath(), c.Request.Method, cid, err)
		respondFailure(c, http.StatusInternalServerError, err.Error(), nil)
	}
}

// bindJSON decodes the body into input; failures answer 422 and return false.
func bindJSON(c *gin.Context, input any) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		respondError(c, utils.ValidationFromBinding(err))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, filter any) bool {
	if err := c.ShouldBindQuery(filter); err != nil {
		respondError(c, utils.ValidationFromBinding(err))
		return false
	}
	return true
}

func paramId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		respondError(c, utils.NewValidationError(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(c.Query(name)))
	if err != nil {
		return def
	}
	return v
}

type structValidator struct{}

func (structValidator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	return utils.ValidatorEngine().Struct(obj)
}

func (structValidator) Engine() any {
	return utils.ValidatorEngine()
}

func init() {
	binding.Validator = structValidator{}
}

func getById[T any](c *gin.Context, get func(ctx context.Context, id int) (*T, error)) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	result, err := get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func deleteById[T any](c *gin.Context, del func(ctx context.Context, id int) (*T, error)) {
	getById(c, del)
}

func create[I any, T any](c *gin.Context, save func(ctx context.Context, input *I) (*T, error)) {
	var input I
	if !bindJSON(c, &input) {
		return
	}
	result, err := save(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, result)
}

func update[I any, T any](c *gin.Context, save func(ctx context.Context, id int, input *I) (*T, error)) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var input I
	if !bindJSON(c, &input) {
		return
	}
	result, err := save(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func list[F any, T any](c *gin.Context, find func(ctx context.Context, filter F) (*models.Page[T], error)) {
	var filter F
	if !bindQuery(c, &filter) {
		return
	}
	page, err := find(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

func transition[T any](c *gin.Context, apply func(ctx context.Context, id int) (*T, error)) {
	getById(c, apply)
}
