package core

// CategoryAmount is a summed amount for one category.
type CategoryAmount struct {
	Category Category `json:"category"`
	Amount   Money    `json:"amount"`
}

// DashboardStats summarises an expense set at a reference instant.
// TopCategory is nil when there are no expenses.
type DashboardStats struct {
	Total       Money           `json:"total"`
	ThisMonth   Money           `json:"this_month"`
	TopCategory *CategoryAmount `json:"top_category"`
}
