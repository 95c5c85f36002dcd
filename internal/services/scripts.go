package services

import "github.com/redis/go-redis/v9"

// Every balance-mutating procedure runs as one Lua script so Redis executes
// it atomically. Scripts finish all checks before the first write: an
// error_reply does not roll back earlier writes.

// recordSpinScript is record_spin.
//
// KEYS: user, day counter, request key, spin record, user spins, leaderboard, global day counter
// ARGV: tier min, tier max, unlimited, reward, spin json, expected nonce, now,
//
//	spin id, day ttl, request ttl, spin ttl, user id
var recordSpinScript = redis.NewScript(`
	local dup = redis.call("HGET", KEYS[3], "spin_id")
	if dup then
		return {"DUPLICATE", dup, redis.call("HGET", KEYS[3], "balance_after"), redis.call("HGET", KEYS[3], "spins_today")}
	end

	if redis.call("EXISTS", KEYS[1]) == 0 then
		return redis.error_reply("NOT_FOUND")
	end
	if redis.call("HGET", KEYS[1], "banned") == "1" then
		return redis.error_reply("BANNED")
	end

	local coins = tonumber(redis.call("HGET", KEYS[1], "coins") or "0")
	local nonce = redis.call("HGET", KEYS[1], "nonce") or "0"
	local tmin = tonumber(ARGV[1])
	local tmax = tonumber(ARGV[2])
	if coins < tmin or (tmax >= 0 and coins >= tmax) or nonce ~= ARGV[6] then
		return redis.error_reply("STALE")
	end

	local used = tonumber(redis.call("GET", KEYS[2]) or "0")
	if ARGV[3] ~= "1" then
		local limit = tonumber(redis.call("HGET", KEYS[1], "daily_spin_limit") or "0")
		if used >= limit then
			return redis.error_reply("SPIN_LIMIT")
		end
	end

	used = redis.call("INCR", KEYS[2])
	redis.call("EXPIRE", KEYS[2], ARGV[9])
	redis.call("INCR", KEYS[7])
	redis.call("EXPIRE", KEYS[7], ARGV[9])

	local balance = redis.call("HINCRBY", KEYS[1], "coins", ARGV[4])
	redis.call("HINCRBY", KEYS[1], "total_spins", 1)
	redis.call("HINCRBY", KEYS[1], "nonce", 1)

	redis.call("SET", KEYS[4], ARGV[5], "EX", ARGV[11])
	redis.call("HSET", KEYS[3], "spin_id", ARGV[8], "balance_after", balance, "spins_today", used)
	redis.call("EXPIRE", KEYS[3], ARGV[10])
	redis.call("ZADD", KEYS[5], ARGV[7], ARGV[8])
	redis.call("ZADD", KEYS[6], balance, ARGV[12])

	return {"OK", ARGV[8], tostring(balance), tostring(used)}
`)

// adjustBalanceScript debits and credits one balance field in a single step.
// With an expected nonce it also consumes the provably fair nonce.
//
// KEYS: user, leaderboard
// ARGV: field, debit, credit, user id, expected nonce or ""
var adjustBalanceScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return redis.error_reply("NOT_FOUND")
	end
	if redis.call("HGET", KEYS[1], "banned") == "1" then
		return redis.error_reply("BANNED")
	end
	if ARGV[5] ~= "" then
		local nonce = redis.call("HGET", KEYS[1], "nonce") or "0"
		if nonce ~= ARGV[5] then
			return redis.error_reply("STALE")
		end
	end

	local debit = tonumber(ARGV[2])
	local credit = tonumber(ARGV[3])
	local balance = tonumber(redis.call("HGET", KEYS[1], ARGV[1]) or "0")
	if balance < debit then
		return redis.error_reply("INSUFFICIENT")
	end

	if ARGV[5] ~= "" then
		redis.call("HINCRBY", KEYS[1], "nonce", 1)
	end
	balance = redis.call("HINCRBY", KEYS[1], ARGV[1], credit - debit)
	if ARGV[1] == "coins" then
		redis.call("ZADD", KEYS[2], balance, ARGV[4])
	end

	return tostring(balance)
`)

// claimRewardScript credits a guarded one-time (or once-per-day) reward.
//
// KEYS: user, guard, leaderboard
// ARGV: reward, guard ttl seconds (0 = forever), user id, tier min, tier max,
//
//	requirement field or "", requirement minimum
var claimRewardScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return redis.error_reply("NOT_FOUND")
	end
	if redis.call("HGET", KEYS[1], "banned") == "1" then
		return redis.error_reply("BANNED")
	end
	if redis.call("EXISTS", KEYS[2]) == 1 then
		return redis.error_reply("CLAIMED")
	end

	local coins = tonumber(redis.call("HGET", KEYS[1], "coins") or "0")
	local tmin = tonumber(ARGV[4])
	local tmax = tonumber(ARGV[5])
	if coins < tmin or (tmax >= 0 and coins >= tmax) then
		return redis.error_reply("STALE")
	end

	if ARGV[6] ~= "" then
		local have = tonumber(redis.call("HGET", KEYS[1], ARGV[6]) or "0")
		if have < tonumber(ARGV[7]) then
			return redis.error_reply("REQUIREMENT")
		end
	end

	if tonumber(ARGV[2]) > 0 then
		redis.call("SET", KEYS[2], "1", "EX", ARGV[2])
	else
		redis.call("SET", KEYS[2], "1")
	end

	local balance = redis.call("HINCRBY", KEYS[1], "coins", ARGV[1])
	redis.call("ZADD", KEYS[3], balance, ARGV[3])
	return tostring(balance)
`)

// referralScript pays both sides of a referral exactly once per referee.
//
// KEYS: referee, referrer, guard, leaderboard, referrer's referrals set
// ARGV: referee bonus, referrer bonus, referee id, referrer id
var referralScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 or redis.call("EXISTS", KEYS[2]) == 0 then
		return redis.error_reply("NOT_FOUND")
	end
	if redis.call("HGET", KEYS[2], "referred_by") == ARGV[3] then
		return redis.error_reply("CYCLE")
	end
	if redis.call("SETNX", KEYS[3], ARGV[4]) == 0 then
		return redis.error_reply("CLAIMED")
	end

	local referee = redis.call("HINCRBY", KEYS[1], "coins", ARGV[1])
	local referrer = redis.call("HINCRBY", KEYS[2], "coins", ARGV[2])
	redis.call("HSET", KEYS[1], "referred_by", ARGV[4])
	redis.call("SADD", KEYS[5], ARGV[3])
	redis.call("ZADD", KEYS[4], referee, ARGV[3])
	redis.call("ZADD", KEYS[4], referrer, ARGV[4])

	return {tostring(referee), tostring(referrer)}
`)

// convertDiamondsScript is convert_diamonds_to_coins.
//
// KEYS: user, leaderboard
// ARGV: diamonds, coins per diamond, user id
var convertDiamondsScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return redis.error_reply("NOT_FOUND")
	end
	if redis.call("HGET", KEYS[1], "banned") == "1" then
		return redis.error_reply("BANNED")
	end

	local n = tonumber(ARGV[1])
	local have = tonumber(redis.call("HGET", KEYS[1], "diamonds") or "0")
	if have < n then
		return redis.error_reply("INSUFFICIENT")
	end

	local diamonds = redis.call("HINCRBY", KEYS[1], "diamonds", -n)
	local coins = redis.call("HINCRBY", KEYS[1], "coins", n * tonumber(ARGV[2]))
	redis.call("ZADD", KEYS[2], coins, ARGV[3])

	return {tostring(coins), tostring(diamonds)}
`)

// requestWithdrawalScript deducts coins and creates the withdrawal row in one
// step; with auto approval the row is created completed.
//
// KEYS: user, withdrawal, pending set, user withdrawals, leaderboard
// ARGV: id, user id, amount, minimum, method, account, now, auto approve
var requestWithdrawalScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return redis.error_reply("NOT_FOUND")
	end
	if redis.call("HGET", KEYS[1], "banned") == "1" then
		return redis.error_reply("BANNED")
	end

	local amount = tonumber(ARGV[3])
	if amount < tonumber(ARGV[4]) then
		return redis.error_reply("BELOW_MIN")
	end
	local coins = tonumber(redis.call("HGET", KEYS[1], "coins") or "0")
	if coins < amount then
		return redis.error_reply("INSUFFICIENT")
	end

	local balance = redis.call("HINCRBY", KEYS[1], "coins", -amount)
	local status = "pending"
	local processed = "0"
	if ARGV[8] == "1" then
		status = "completed"
		processed = ARGV[7]
	end

	redis.call("HSET", KEYS[2],
		"id", ARGV[1],
		"user_id", ARGV[2],
		"amount", ARGV[3],
		"method", ARGV[5],
		"account", ARGV[6],
		"status", status,
		"admin_notes", "",
		"created_at", ARGV[7],
		"processed_at", processed)
	if status == "pending" then
		redis.call("ZADD", KEYS[3], ARGV[7], ARGV[1])
	end
	redis.call("ZADD", KEYS[4], ARGV[7], ARGV[1])
	redis.call("ZADD", KEYS[5], balance, ARGV[2])

	return {status, tostring(balance)}
`)

// decideWithdrawalScript moves a pending withdrawal to completed or rejected.
// Rejection refunds the amount in the same step.
//
// KEYS: withdrawal, pending set, leaderboard, user
// ARGV: decision, notes, now, withdrawal id, user id
var decideWithdrawalScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return redis.error_reply("NOT_FOUND")
	end
	if redis.call("HGET", KEYS[1], "status") ~= "pending" then
		return redis.error_reply("STATE")
	end
	if redis.call("HGET", KEYS[1], "user_id") ~= ARGV[5] then
		return redis.error_reply("STATE")
	end

	redis.call("HSET", KEYS[1], "status", ARGV[1], "admin_notes", ARGV[2], "processed_at", ARGV[3])
	redis.call("ZREM", KEYS[2], ARGV[4])

	local balance = tonumber(redis.call("HGET", KEYS[4], "coins") or "0")
	if ARGV[1] == "rejected" then
		balance = redis.call("HINCRBY", KEYS[4], "coins", redis.call("HGET", KEYS[1], "amount"))
		redis.call("ZADD", KEYS[3], balance, ARGV[5])
	end

	return tostring(balance)
`)

// purchaseItemScript is purchase_item.
//
// KEYS: user, item, inventory, leaderboard
// ARGV: quantity, user id, item id
var purchaseItemScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return redis.error_reply("NOT_FOUND")
	end
	if redis.call("HGET", KEYS[1], "banned") == "1" then
		return redis.error_reply("BANNED")
	end
	if redis.call("EXISTS", KEYS[2]) == 0 then
		return redis.error_reply("NOT_FOUND")
	end
	if redis.call("HGET", KEYS[2], "active") ~= "1" then
		return redis.error_reply("UNAVAILABLE")
	end

	local qty = tonumber(ARGV[1])
	local price = tonumber(redis.call("HGET", KEYS[2], "price"))
	local currency = redis.call("HGET", KEYS[2], "currency")
	local stock = tonumber(redis.call("HGET", KEYS[2], "stock"))
	if stock >= 0 and stock < qty then
		return redis.error_reply("OUT_OF_STOCK")
	end

	local cost = price * qty
	local balance = tonumber(redis.call("HGET", KEYS[1], currency) or "0")
	if balance < cost then
		return redis.error_reply("INSUFFICIENT")
	end

	if stock >= 0 then
		redis.call("HINCRBY", KEYS[2], "stock", -qty)
	end
	balance = redis.call("HINCRBY", KEYS[1], currency, -cost)
	local owned = redis.call("HINCRBY", KEYS[3], ARGV[3], qty)
	if currency == "coins" then
		redis.call("ZADD", KEYS[4], balance, ARGV[2])
	end

	return {currency, tostring(cost), tostring(balance), tostring(owned)}
`)

// equipItemScript is equip_item. One item per category is equipped.
//
// KEYS: inventory, equipped, item
// ARGV: item id, equip flag
var equipItemScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[3]) == 0 then
		return redis.error_reply("NOT_FOUND")
	end
	local owned = tonumber(redis.call("HGET", KEYS[1], ARGV[1]) or "0")
	if owned <= 0 then
		return redis.error_reply("NOT_OWNED")
	end

	local category = redis.call("HGET", KEYS[3], "category")
	if ARGV[2] == "1" then
		redis.call("HSET", KEYS[2], category, ARGV[1])
	elseif redis.call("HGET", KEYS[2], category) == ARGV[1] then
		redis.call("HDEL", KEYS[2], category)
	end

	return category
`)

// buyTicketScript is buy_lottery_ticket.
//
// KEYS: user, lottery, lottery tickets, ticket, user tickets, leaderboard
// ARGV: user id, ticket id, numbers, now, lottery id
var buyTicketScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return redis.error_reply("NOT_FOUND")
	end
	if redis.call("HGET", KEYS[1], "banned") == "1" then
		return redis.error_reply("BANNED")
	end
	if redis.call("EXISTS", KEYS[2]) == 0 then
		return redis.error_reply("NOT_FOUND")
	end
	if redis.call("HGET", KEYS[2], "status") ~= "open" then
		return redis.error_reply("CLOSED")
	end
	if tonumber(redis.call("HGET", KEYS[2], "draw_at")) <= tonumber(ARGV[4]) then
		return redis.error_reply("CLOSED")
	end

	local price = tonumber(redis.call("HGET", KEYS[2], "ticket_price"))
	local coins = tonumber(redis.call("HGET", KEYS[1], "coins") or "0")
	if coins < price then
		return redis.error_reply("INSUFFICIENT")
	end

	local balance = redis.call("HINCRBY", KEYS[1], "coins", -price)
	local pool = redis.call("HINCRBY", KEYS[2], "prize_pool", price)
	redis.call("HINCRBY", KEYS[2], "ticket_count", 1)
	redis.call("HSET", KEYS[4],
		"id", ARGV[2],
		"lottery_id", ARGV[5],
		"user_id", ARGV[1],
		"numbers", ARGV[3],
		"purchased_at", ARGV[4])
	redis.call("RPUSH", KEYS[3], ARGV[2])
	redis.call("ZADD", KEYS[5], ARGV[4], ARGV[2])
	redis.call("ZADD", KEYS[6], balance, ARGV[1])

	return {tostring(balance), tostring(pool)}
`)

// beginDrawScript locks a lottery for drawing; afterwards no ticket can be
// bought or changed.
//
// KEYS: lottery, open lotteries, drawing lotteries
// ARGV: now, force, lottery id
var beginDrawScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return redis.error_reply("NOT_FOUND")
	end
	if redis.call("HGET", KEYS[1], "status") ~= "open" then
		return redis.error_reply("STATE")
	end
	if ARGV[2] ~= "1" and tonumber(redis.call("HGET", KEYS[1], "draw_at")) > tonumber(ARGV[1]) then
		return redis.error_reply("STATE")
	end

	redis.call("HSET", KEYS[1], "status", "drawing")
	redis.call("ZREM", KEYS[2], ARGV[3])
	redis.call("SADD", KEYS[3], ARGV[3])
	return redis.call("HGET", KEYS[1], "prize_pool")
`)

// settleDrawScript is the second half of conduct_lottery_draw: it credits the
// winners and closes the game.
//
// KEYS: lottery, leaderboard, rollover, winners, drawing lotteries,
// winner user hashes...
// ARGV: winning numbers, prize per winner, now, rollover, winner count,
// lottery id, then (user id, ticket id) per winner
var settleDrawScript = redis.NewScript(`
	if redis.call("HGET", KEYS[1], "status") ~= "drawing" then
		return redis.error_reply("STATE")
	end

	local prize = tonumber(ARGV[2])
	local n = tonumber(ARGV[5])
	local balances = {}
	for i = 1, n do
		local uid = ARGV[5 + 2 * i]
		local tid = ARGV[6 + 2 * i]
		local balance = redis.call("HINCRBY", KEYS[5 + i], "coins", prize)
		redis.call("ZADD", KEYS[2], balance, uid)
		redis.call("HSET", KEYS[4], tid, uid)
		balances[i] = tostring(balance)
	end

	if tonumber(ARGV[4]) > 0 then
		redis.call("INCRBY", KEYS[3], ARGV[4])
	end

	redis.call("HSET", KEYS[1],
		"status", "drawn",
		"winning_numbers", ARGV[1],
		"winner_count", n,
		"prize_per_winner", prize,
		"drawn_at", ARGV[3])
	redis.call("SREM", KEYS[5], ARGV[6])

	return balances
`)

// createLotteryScript opens a new game seeded with any rolled-over pool.
//
// KEYS: lottery, rollover, all lotteries, open lotteries
// ARGV: id, title, number count, max number, ticket price, draw at, now
var createLotteryScript = redis.NewScript(`
	local carry = tonumber(redis.call("GET", KEYS[2]) or "0")
	redis.call("DEL", KEYS[2])

	redis.call("HSET", KEYS[1],
		"id", ARGV[1],
		"title", ARGV[2],
		"number_count", ARGV[3],
		"max_number", ARGV[4],
		"ticket_price", ARGV[5],
		"prize_pool", carry,
		"ticket_count", 0,
		"status", "open",
		"winning_numbers", "",
		"winner_count", 0,
		"prize_per_winner", 0,
		"draw_at", ARGV[6],
		"drawn_at", 0,
		"created_at", ARGV[7])
	redis.call("ZADD", KEYS[3], ARGV[7], ARGV[1])
	redis.call("ZADD", KEYS[4], ARGV[6], ARGV[1])

	return tostring(carry)
`)

// settlePurchaseScript resolves a pending diamond purchase from the payment
// gateway return. Diamonds are credited at most once.
//
// KEYS: purchase, user
// ARGV: status, now
var settlePurchaseScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return redis.error_reply("NOT_FOUND")
	end
	if redis.call("HGET", KEYS[1], "status") ~= "pending" then
		return redis.error_reply("STATE")
	end

	redis.call("HSET", KEYS[1], "status", ARGV[1], "completed_at", ARGV[2])
	if ARGV[1] == "completed" then
		return tostring(redis.call("HINCRBY", KEYS[2], "diamonds", redis.call("HGET", KEYS[1], "diamonds")))
	end
	return tostring(tonumber(redis.call("HGET", KEYS[2], "diamonds") or "0"))
`)

// setUserFieldScript updates a single field of an existing user.
//
// KEYS: user
// ARGV: field, value
var setUserFieldScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return redis.error_reply("NOT_FOUND")
	end
	redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
	return "OK"
`)

// markReadScript is mark_messages_read: it zeroes the reader's unread count
// and moves the read cursor to the latest message in one step.
//
// KEYS: conversation, unread counts, read cursors
// ARGV: reader id
var markReadScript = redis.NewScript(`
	local seq = redis.call("HGET", KEYS[1], "seq")
	if not seq then
		return {"0", "0"}
	end
	local prev = redis.call("HGET", KEYS[2], ARGV[1]) or "0"
	redis.call("HSET", KEYS[2], ARGV[1], 0)
	redis.call("HSET", KEYS[3], ARGV[1], seq)
	return {prev, seq}
`)
