package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"plantops.io/mis/internal/api/openapi"
	apperrors "plantops.io/mis/internal/pkg/errors"
	"plantops.io/mis/internal/pkg/logger"
)

// MustOpenAPIValidator creates the request validator and panics on setup failure.
func MustOpenAPIValidator(basePath string) gin.HandlerFunc {
	mw, err := NewOpenAPIValidator(basePath)
	if err != nil {
		panic(fmt.Sprintf("init openapi validator: %v", err))
	}
	return mw
}

// NewOpenAPIValidator validates request parameters and bodies against the
// embedded OpenAPI document. Paths the document does not describe pass through.
func NewOpenAPIValidator(basePath string) (gin.HandlerFunc, error) {
	doc, err := openapi.Load()
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("create openapi router: %w", err)
	}

	basePath = normalizeBasePath(basePath)

	return func(c *gin.Context) {
		origPath := c.Request.URL.Path
		origRawPath := c.Request.URL.RawPath

		route, pathParams, routeErr := findRouteWithFallback(router, c.Request, basePath)
		if routeErr != nil {
			c.Request.URL.Path = origPath
			c.Request.URL.RawPath = origRawPath
			// Undocumented paths and methods are left to the gin router.
			if isPathNotFoundError(routeErr) || errors.Is(routeErr, routers.ErrMethodNotAllowed) {
				c.Next()
				return
			}
			abortWithError(c, apperrors.BadRequest(apperrors.CodeValidationFailed, routeErr.Error()))
			return
		}

		reqValidationInput := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: func(context.Context, *openapi3filter.AuthenticationInput) error {
					// Authentication and RBAC run as dedicated middleware.
					return nil
				},
			},
		}
		err := openapi3filter.ValidateRequest(c.Request.Context(), reqValidationInput)
		c.Request.URL.Path = origPath
		c.Request.URL.RawPath = origRawPath
		if err != nil {
			logger.Debug("OpenAPI request validation failed",
				zap.String("method", c.Request.Method),
				zap.String("path", origPath),
				zap.Error(err),
			)
			abortWithError(c, requestValidationError(err))
			return
		}

		c.Next()
	}, nil
}

// requestValidationError turns a kin-openapi error into a 400 naming the field.
func requestValidationError(err error) *apperrors.AppError {
	field := ""
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		field = strings.Join(schemaErr.JSONPointer(), ".")
	}
	var reqErr *openapi3filter.RequestError
	if field == "" && errors.As(err, &reqErr) && reqErr.Parameter != nil {
		field = reqErr.Parameter.Name
	}

	msg := "request does not match the API contract"
	if schemaErr != nil && schemaErr.Reason != "" {
		msg = schemaErr.Reason
	} else if reqErr != nil && reqErr.Reason != "" {
		msg = reqErr.Reason
	}
	if field != "" {
		msg = field + ": " + msg
	}

	appErr := apperrors.BadRequest(apperrors.CodeValidationFailed, msg)
	if field != "" {
		appErr = appErr.WithFieldErrors([]apperrors.FieldError{{
			Field:   field,
			Code:    apperrors.CodeValidationFailed,
			Message: msg,
		}})
	}
	return appErr
}

func normalizeBasePath(basePath string) string {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" || basePath == "/" {
		return ""
	}
	return "/" + strings.Trim(basePath, "/")
}

func normalizeValidationPath(basePath, path string) string {
	if basePath == "" {
		if path == "" {
			return "/"
		}
		return path
	}
	if path == basePath {
		return "/"
	}
	if strings.HasPrefix(path, basePath+"/") {
		return "/" + strings.TrimPrefix(path, basePath+"/")
	}
	return path
}

func findRouteWithFallback(
	router routers.Router,
	req *http.Request,
	basePath string,
) (*routers.Route, map[string]string, error) {
	origPath := req.URL.Path
	origRawPath := req.URL.RawPath

	candidates := [][2]string{{origPath, origRawPath}}
	normalizedPath := normalizeValidationPath(basePath, origPath)
	normalizedRawPath := origRawPath
	if origRawPath != "" {
		normalizedRawPath = normalizeValidationPath(basePath, origRawPath)
	}
	if normalizedPath != origPath || normalizedRawPath != origRawPath {
		candidates = append(candidates, [2]string{normalizedPath, normalizedRawPath})
	}

	var lastErr error
	for _, candidate := range candidates {
		req.URL.Path = candidate[0]
		req.URL.RawPath = candidate[1]

		route, pathParams, err := router.FindRoute(req)
		if err == nil {
			return route, pathParams, nil
		}
		if !isPathNotFoundError(err) {
			return nil, nil, err
		}
		lastErr = err
	}

	req.URL.Path = origPath
	req.URL.RawPath = origRawPath
	return nil, nil, lastErr
}

func isPathNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if err == routers.ErrPathNotFound {
		return true
	}
	if strings.Contains(err.Error(), routers.ErrPathNotFound.Error()) {
		return true
	}
	if routeErr, ok := err.(*routers.RouteError); ok && strings.Contains(routeErr.Reason, routers.ErrPathNotFound.Error()) {
		return true
	}
	return false
}
