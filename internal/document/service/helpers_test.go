package service_test

import "github.com/smallbiznis/schoolbill/pkg/db/pagination"

func paginationOf(token string, size int) pagination.Pagination {
	return pagination.Pagination{PageToken: token, PageSize: size}
}
