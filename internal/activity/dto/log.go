package dto

type ListLogsQuery struct {
	AgentID string `form:"agentId"`
	Limit   int    `form:"limit"`
	Offset  int    `form:"offset"`
}
