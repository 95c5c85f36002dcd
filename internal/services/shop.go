package services

import (
	"context"
	"fmt"
	"strconv"

	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/realtime"
)

type ShopService struct {
	store *RedisService
}

func NewShopService(store *RedisService) *ShopService {
	return &ShopService{store: store}
}

// Seed writes catalog items that do not exist yet. Existing items keep their
// live stock.
func (s *ShopService) Seed(ctx context.Context, items []models.ShopItem) (int, error) {
	created := 0
	for i := range items {
		item := items[i]
		key := fmt.Sprintf(KeyShopItem, item.ID)
		exists, err := s.store.client.Exists(ctx, key).Result()
		if err != nil {
			return created, err
		}
		if exists > 0 {
			continue
		}
		if err := s.SaveItem(ctx, &item); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *ShopService) SaveItem(ctx context.Context, item *models.ShopItem) error {
	pipe := s.store.client.TxPipeline()
	pipe.HSet(ctx, fmt.Sprintf(KeyShopItem, item.ID), item.HashFields())
	pipe.SAdd(ctx, KeyShopItems, item.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save shop item %s: %w", item.ID, err)
	}
	return nil
}

func (s *ShopService) GetItem(ctx context.Context, id string) (*models.ShopItem, error) {
	var item models.ShopItem
	if err := s.store.loadHash(ctx, fmt.Sprintf(KeyShopItem, id), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Items lists the active items.
func (s *ShopService) Items(ctx context.Context) ([]*models.ShopItem, error) {
	ids, err := s.store.client.SMembers(ctx, KeyShopItems).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*models.ShopItem, 0, len(ids))
	for _, id := range ids {
		item, err := s.GetItem(ctx, id)
		if err != nil || !item.Active {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// Purchase is purchase_item.
func (s *ShopService) Purchase(ctx context.Context, userID string, req *models.PurchaseRequest) (*models.PurchaseResult, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidAmount
	}

	vals, err := scriptStrings(purchaseItemScript.Run(ctx, s.store.client,
		[]string{
			fmt.Sprintf(KeyUser, userID),
			fmt.Sprintf(KeyShopItem, req.ItemID),
			fmt.Sprintf(KeyInventory, userID),
			KeyLeaderboard,
		},
		req.Quantity, userID, req.ItemID,
	))
	if err != nil {
		return nil, err
	}
	nums, err := parseInts(vals[1:])
	if err != nil {
		return nil, err
	}

	result := &models.PurchaseResult{
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
		Currency: models.Currency(vals[0]),
		Cost:     nums[0],
		Balance:  nums[1],
		Owned:    nums[2],
	}

	s.store.record(ctx, userID, models.TransactionTypePurchase, result.Currency, -result.Cost, result.Balance, req.ItemID,
		fmt.Sprintf("Bought %d x %s", req.Quantity, req.ItemID))
	s.store.publish(ctx, realtime.NewEvent(realtime.TableInventory, realtime.ChangeUpdate, req.ItemID, userID, result))
	s.store.publishUser(ctx, userID)

	return result, nil
}

// Equip is equip_item. Equipping replaces any item of the same category.
func (s *ShopService) Equip(ctx context.Context, userID string, req *models.EquipRequest) (map[string]string, error) {
	flag := "0"
	if req.Equip {
		flag = "1"
	}
	err := equipItemScript.Run(ctx, s.store.client,
		[]string{
			fmt.Sprintf(KeyInventory, userID),
			fmt.Sprintf(KeyEquipped, userID),
			fmt.Sprintf(KeyShopItem, req.ItemID),
		},
		req.ItemID, flag,
	).Err()
	if err != nil {
		return nil, scriptError(err)
	}

	equipped, err := s.store.client.HGetAll(ctx, fmt.Sprintf(KeyEquipped, userID)).Result()
	if err != nil {
		return nil, err
	}
	s.store.publish(ctx, realtime.NewEvent(realtime.TableInventory, realtime.ChangeUpdate, req.ItemID, userID, equipped))
	return equipped, nil
}

func (s *ShopService) Inventory(ctx context.Context, userID string) ([]*models.InventoryEntry, error) {
	owned, err := s.store.client.HGetAll(ctx, fmt.Sprintf(KeyInventory, userID)).Result()
	if err != nil {
		return nil, err
	}
	equipped, err := s.store.client.HGetAll(ctx, fmt.Sprintf(KeyEquipped, userID)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*models.InventoryEntry, 0, len(owned))
	for id, qty := range owned {
		n, err := strconv.ParseInt(qty, 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		item, err := s.GetItem(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, &models.InventoryEntry{
			Item:     *item,
			Quantity: n,
			Equipped: equipped[item.Category] == id,
		})
	}
	return out, nil
}
