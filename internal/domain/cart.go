package domain

type Configuration struct {
	ProductID       string   `json:"productId"`
	SelectedModules []string `json:"selectedModules"`
}

// CartItem carries a denormalized product snapshot so totals survive catalog changes.
type CartItem struct {
	ID string `json:"id"`
	Configuration
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

func CloneItems(items []CartItem) []CartItem {
	if items == nil {
		return nil
	}
	out := make([]CartItem, len(items))
	for i, it := range items {
		it.SelectedModules = append([]string(nil), it.SelectedModules...)
		out[i] = it
	}
	return out
}
