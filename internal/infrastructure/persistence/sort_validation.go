package persistence

import (
	"errors"
	"strings"

	"github.com/flora/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// FlowerSortFields contains allowed sort fields for flowers
var FlowerSortFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"name":       true,
	"slug":       true,
}

// TransactionSortFields contains allowed sort fields for POS transactions
var TransactionSortFields = map[string]bool{
	"created_at": true,
	"number":     true,
	"total":      true,
	"type":       true,
}

// ShiftSortFields contains allowed sort fields for shifts
var ShiftSortFields = map[string]bool{
	"created_at": true,
	"opened_at":  true,
	"closed_at":  true,
	"number":     true,
}

// SupplySortFields contains allowed sort fields for supplies
var SupplySortFields = map[string]bool{
	"created_at":  true,
	"expected_at": true,
	"received_at": true,
	"number":      true,
	"supplier":    true,
}

// CustomerSortFields contains allowed sort fields for customers
var CustomerSortFields = map[string]bool{
	"created_at":   true,
	"name":         true,
	"total_spent":  true,
	"orders_count": true,
	"debt":         true,
}

// MovementSortFields contains allowed sort fields for stock movements
var MovementSortFields = map[string]bool{
	"created_at": true,
	"quantity":   true,
}

// paginate applies whitelisted ordering and paging
func paginate(query *gorm.DB, filter shared.Filter, allowed map[string]bool, defaultField string) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowed, defaultField)
	query = query.Order(field + " " + ValidateSortOrder(filter.OrderDir))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}

// likePattern escapes LIKE wildcards in a user-supplied search term
func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(strings.TrimSpace(search))) + "%"
}

// notFound maps gorm.ErrRecordNotFound to the domain error
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}
