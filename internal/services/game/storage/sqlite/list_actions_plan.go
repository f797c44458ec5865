package sqlite

import "fmt"

type listActionsRequest struct {
	SessionID    string
	AfterSeq     int64
	PageSize     int
	FilterClause string
	FilterParams []any
}

type listActionsSQLPlan struct {
	whereClause      string
	params           []any
	orderClause      string
	limitClause      string
	pageSize         int
	countWhereClause string
	countParams      []any
}

// buildListActionsSQLPlan fetches one row past the page to detect a next page.
// The count ignores AfterSeq so it reports the whole filtered history.
func buildListActionsSQLPlan(req listActionsRequest) listActionsSQLPlan {
	whereClause := "session_id = ?"
	params := []any{req.SessionID}
	countWhereClause := whereClause
	countParams := []any{req.SessionID}

	if req.AfterSeq > 0 {
		whereClause += " AND seq > ?"
		params = append(params, req.AfterSeq)
	}
	if req.FilterClause != "" {
		whereClause += " AND " + req.FilterClause
		params = append(params, req.FilterParams...)
		countWhereClause += " AND " + req.FilterClause
		countParams = append(countParams, req.FilterParams...)
	}

	return listActionsSQLPlan{
		whereClause:      whereClause,
		params:           params,
		orderClause:      "ORDER BY seq ASC",
		limitClause:      fmt.Sprintf("LIMIT %d", req.PageSize+1),
		pageSize:         req.PageSize,
		countWhereClause: countWhereClause,
		countParams:      countParams,
	}
}
