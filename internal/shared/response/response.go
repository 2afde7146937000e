package response

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

type PaginationMeta struct {
	Total      int64 `json:"total,omitempty"`
	TotalPages int   `json:"totalPages,omitempty"`
	Page       int   `json:"page,omitempty"`
	PageSize   int   `json:"pageSize,omitempty"`
}

func NewPaginationMeta(total int64, page, limit int) PaginationMeta {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}

	return PaginationMeta{
		Total:      total,
		TotalPages: totalPages,
		Page:       page,
		PageSize:   limit,
	}
}

// PageParams reads page and page_size from the query string.
func PageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// Paginate slices an already ordered result set in memory.
func Paginate[T any](items []T, page, pageSize int) ([]T, PaginationMeta) {
	total := int64(len(items))
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], NewPaginationMeta(total, page, pageSize)
}

type ApiEnvelope struct {
	Ok    bool            `json:"ok"`
	Data  any             `json:"data,omitempty"`
	Meta  *PaginationMeta `json:"meta,omitempty"`
	Error any             `json:"error,omitempty"`
}

func Success(c *gin.Context, status int, data interface{}, meta *PaginationMeta) {
	c.JSON(status, ApiEnvelope{
		Ok:    true,
		Data:  data,
		Meta:  meta,
		Error: nil,
	})
}

func Error(c *gin.Context, status int, errorCode string, message string, details interface{}) {
	c.JSON(status, ApiEnvelope{
		Ok:   false,
		Data: nil,
		Meta: nil,
		Error: map[string]interface{}{
			"code":    errorCode,
			"message": message,
			"details": details,
		},
	})
}
