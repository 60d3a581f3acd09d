package counter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PlanFox/internal/pkg/cache"
	"github.com/ManuelReschke/PlanFox/internal/pkg/database"
)

const accountTable = "calendar_accounts"

// hashCounter is a Redis hash of per-account increments that is periodically
// added onto one column of calendar_accounts
type hashCounter struct {
	key    string
	column string
}

var (
	fetches  = hashCounter{key: "calendar:counters:fetches", column: "fetch_count"}
	failures = hashCounter{key: "calendar:counters:failures", column: "failure_count"}
)

func (hc hashCounter) add(accountID uint) error {
	field := strconv.FormatUint(uint64(accountID), 10)
	return cache.GetClient().HIncrBy(context.Background(), hc.key, field, 1).Err()
}

// AddAccountFetch counts one provider fetch of an account
func AddAccountFetch(accountID uint) error {
	return fetches.add(accountID)
}

// AddAccountFailure counts one failed provider fetch of an account
func AddAccountFailure(accountID uint) error {
	return failures.add(accountID)
}

// Recorder counts account fetches for the aggregator
type Recorder struct{}

// RecordFetch counts one fetch and, when err is set, one failure
func (Recorder) RecordFetch(accountID uint, err error) {
	if cache.GetClient() == nil {
		return
	}
	if cerr := AddAccountFetch(accountID); cerr != nil {
		log.Debugf("[Counter] Fetch counter for account %d: %v", accountID, cerr)
	}
	if err == nil {
		return
	}
	if cerr := AddAccountFailure(accountID); cerr != nil {
		log.Debugf("[Counter] Failure counter for account %d: %v", accountID, cerr)
	}
}

// FlushAll writes the pending fetch and failure counts to the database
func FlushAll() error {
	for _, hc := range []hashCounter{fetches, failures} {
		if err := hc.flush(); err != nil {
			return fmt.Errorf("flush %s: %w", hc.key, err)
		}
	}
	return nil
}

type increment struct {
	id  uint64
	inc int64
}

// flush drains the hash into a single UPDATE. The hash is renamed first so
// increments arriving mid-flush land in a fresh key.
func (hc hashCounter) flush() error {
	db := database.GetDB()
	if db == nil {
		return errors.New("database not initialized")
	}
	ctx := context.Background()
	rdb := cache.GetClient()

	draining := fmt.Sprintf("%s:tmp:%d", hc.key, time.Now().UnixNano())
	if err := rdb.Rename(ctx, hc.key, draining).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		return err
	}
	defer rdb.Del(ctx, draining)

	data, err := rdb.HGetAll(ctx, draining).Result()
	if err != nil {
		return err
	}
	pairs := parseIncrements(data)
	if len(pairs) == 0 {
		return nil
	}
	query, args := buildIncrementSQL(accountTable, hc.column, pairs)
	return db.Exec(query, args...).Error
}

// parseIncrements skips malformed and zero entries and sorts by id
func parseIncrements(data map[string]string) []increment {
	pairs := make([]increment, 0, len(data))
	for k, v := range data {
		id, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			continue
		}
		inc, err := strconv.ParseInt(v, 10, 64)
		if err != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, increment{id: id, inc: inc})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })
	return pairs
}

func buildIncrementSQL(table, column string, pairs []increment) (string, []interface{}) {
	cases := make([]interface{}, 0, len(pairs)*2)
	ids := make([]interface{}, 0, len(pairs))
	for _, p := range pairs {
		cases = append(cases, p.id, p.inc)
		ids = append(ids, p.id)
	}
	query := fmt.Sprintf("UPDATE %s SET %s = %s + CASE id%s END WHERE id IN (%s)",
		table, column, column,
		strings.Repeat(" WHEN ? THEN ?", len(pairs)),
		strings.TrimPrefix(strings.Repeat(",?", len(pairs)), ","))
	return query, append(cases, ids...)
}
