package models

type ShopItem struct {
	ID          string   `json:"id" yaml:"id" redis:"id"`
	Name        string   `json:"name" yaml:"name" redis:"name"`
	Description string   `json:"description" yaml:"description" redis:"description"`
	Category    string   `json:"category" yaml:"category" redis:"category"`
	Price       int64    `json:"price" yaml:"price" redis:"price"`
	Currency    Currency `json:"currency" yaml:"currency" redis:"currency"`
	// Stock of -1 means unlimited.
	Stock  int64 `json:"stock" yaml:"stock" redis:"stock"`
	Active bool  `json:"active" yaml:"active" redis:"active"`
}

func (i *ShopItem) HashFields() map[string]interface{} {
	return map[string]interface{}{
		"id":          i.ID,
		"name":        i.Name,
		"description": i.Description,
		"category":    i.Category,
		"price":       i.Price,
		"currency":    string(i.Currency),
		"stock":       i.Stock,
		"active":      boolField(i.Active),
	}
}

type InventoryEntry struct {
	Item     ShopItem `json:"item"`
	Quantity int64    `json:"quantity"`
	Equipped bool     `json:"equipped"`
}

type PurchaseRequest struct {
	ItemID   string `json:"item_id" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required,min=1,max=100"`
}

type PurchaseResult struct {
	ItemID   string   `json:"item_id"`
	Quantity int64    `json:"quantity"`
	Owned    int64    `json:"owned"`
	Cost     int64    `json:"cost"`
	Currency Currency `json:"currency"`
	Balance  int64    `json:"balance"`
}

type EquipRequest struct {
	ItemID string `json:"item_id" binding:"required"`
	Equip  bool   `json:"equip"`
}
