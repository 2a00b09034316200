package dto

import "net/http"

// API error codes. Every code has the form ERR_<CATEGORY>[_<DETAIL>].
const (
	ErrCodeInternal           = "ERR_INTERNAL"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
	ErrCodeBadRequest         = "ERR_BAD_REQUEST"
	ErrCodeRateLimited        = "ERR_RATE_LIMITED"

	ErrCodeValidation       = "ERR_VALIDATION"
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"

	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	ErrCodeInvalidState  = "ERR_INVALID_STATE"
)

// Provisioning error codes
const (
	// ErrCodeTenantDatabaseExists means the derived tenant database is taken
	ErrCodeTenantDatabaseExists = "ERR_TENANT_DB_EXISTS"
	// ErrCodeInvalidTenantDatabase means no usable database name could be derived
	ErrCodeInvalidTenantDatabase = "ERR_TENANT_DB_INVALID"
	ErrCodeCompanyExists         = "ERR_COMPANY_EXISTS"
	// ErrCodeProvisioningInProgress means another run holds the tenant name
	ErrCodeProvisioningInProgress = "ERR_PROVISIONING_IN_PROGRESS"
	ErrCodeScriptNotFound         = "ERR_SCRIPT_NOT_FOUND"
	ErrCodeProvisioningFailed     = "ERR_PROVISIONING_FAILED"
)

var statusByCode = map[string]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeRateLimited:        http.StatusTooManyRequests,

	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeValidationFormat: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,
	ErrCodeInvalidState:  http.StatusUnprocessableEntity,

	ErrCodeTenantDatabaseExists:   http.StatusConflict,
	ErrCodeInvalidTenantDatabase:  http.StatusBadRequest,
	ErrCodeCompanyExists:          http.StatusConflict,
	ErrCodeProvisioningInProgress: http.StatusConflict,
	ErrCodeScriptNotFound:         http.StatusInternalServerError,
	ErrCodeProvisioningFailed:     http.StatusBadRequest,
}

// domainCodes translates shared.DomainError codes into API codes
var domainCodes = map[string]string{
	"NOT_FOUND":                ErrCodeNotFound,
	"ALREADY_EXISTS":           ErrCodeAlreadyExists,
	"INVALID_TRANSITION":       ErrCodeInvalidState,
	"INVALID_COMPANY_ID":       ErrCodeValidation,
	"INVALID_TENANT_DB":        ErrCodeInvalidTenantDatabase,
	"TENANT_DB_EXISTS":         ErrCodeTenantDatabaseExists,
	"COMPANY_EXISTS":           ErrCodeCompanyExists,
	"PROVISIONING_IN_PROGRESS": ErrCodeProvisioningInProgress,
	"SCRIPT_NOT_FOUND":         ErrCodeScriptNotFound,
}

// GetHTTPStatus returns the status for an API code, 500 for unknown codes
func GetHTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode maps a domain code to its API code. API codes and
// unknown codes pass through.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainCodes[code]; ok {
		return apiCode
	}
	return code
}
