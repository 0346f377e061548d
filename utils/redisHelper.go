package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"golang.org/x/sync/singleflight"
)

var loadGroup singleflight.Group

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(config.StringFromEnv("CACHE_LIFESPAN_MINUTES", ""))
	if err != nil || lifespan <= 0 {
		lifespan = 60
	}
	return time.Duration(lifespan) * time.Minute
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

func itemKey[T any](id int) string {
	return GetTypeName[T]() + ":" + fmt.Sprint(id)
}

// keySet holds every list/filter key cached for T, so writes can drop them all.
func keySet[T any]() string {
	return GetTypeName[T]() + "Keys"
}

// ListKey derives a stable key from a filter struct: TypeList:<sha1>.
func ListKey[T any](filter any) string {
	b, _ := json.Marshal(filter)
	sum := sha1.Sum(b)
	return GetTypeName[T]() + "List:" + hex.EncodeToString(sum[:8])
}

/* Redis */

// store instance under Type:$id
func StoreRedis[T any](obj *T, id int) error {
	return config.SetRedisObject(itemKey[T](id), obj, GetCacheLifespan())
}

// get from redis
// returns nil if does not exist
func RetrieveRedis[T any](id int) (*T, error) {
	var result T
	exists, err := config.GetRedisObject(itemKey[T](id), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return &result, nil
}

// remove an instance, Type:$id
func RemoveRedisItem[T any](id int) error {
	return config.RemoveRedisKey(itemKey[T](id))
}

// remove every list key registered for T
func RemoveRedisList[T any]() error {
	keys, err := config.GetRedisSetMembers(keySet[T]())
	if err != nil {
		return err
	}
	keys = append(keys, keySet[T]())
	return config.RemoveRedisKey(keys...)
}

// RemoveRedisBoth drops the row key and all list keys of T.
func RemoveRedisBoth[T any](id int) error {
	if err := RemoveRedisItem[T](id); err != nil {
		return err
	}
	return RemoveRedisList[T]()
}

// Remember returns the cached value at key or loads, caches and returns it.
// Concurrent misses on the same key share one load.
func Remember[R any](key string, ttl time.Duration, loader func() (R, error)) (R, error) {
	var cached R
	found, err := config.GetRedisObject(key, &cached)
	if err == nil && found {
		return cached, nil
	}

	v, err, _ := loadGroup.Do(key, func() (interface{}, error) {
		result, err := loader()
		if err != nil {
			return result, err
		}
		if storeErr := config.SetRedisObject(key, result, ttl); storeErr != nil {
			config.LogError(config.GetLogger(), "utils", "Remember", "SetRedisObject", key, storeErr)
		}
		return result, nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return v.(R), nil
}

// RememberList caches a filtered list of T and registers the key for invalidation.
func RememberList[T any, R any](filter any, loader func() (R, error)) (R, error) {
	key := ListKey[T](filter)
	if err := config.AddRedisSet(keySet[T](), key); err != nil {
		config.LogError(config.GetLogger(), "utils", "RememberList", "AddRedisSet", key, err)
	}
	return Remember(key, GetCacheLifespan(), loader)
}
