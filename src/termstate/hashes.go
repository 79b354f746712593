package termstate

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mtclient/src/models"
)

// -----------------------------------------------------------------------------

// Hashes holds the three content digests the engine sends in a synchronize
// request to let the server skip resending unchanged collections (§4.4,
// §6). An empty string means "uninitialized" rather than "hash of empty
// collection" — the server treats both as a signal to resend everything.
type Hashes struct {
	Specifications string
	Positions      string
	Orders         string
}

// -----------------------------------------------------------------------------

// GetHashes computes the three content digests for instanceIndex under the
// given account type ("cloud-g1" uses the legacy fixed-point stringifier;
// anything else, including "cloud-g2", uses natural JSON).
func (m *Manager) GetHashes(accountType, instanceIndex string) Hashes {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.instance(instanceIndex)
	g1 := accountType == "cloud-g1"

	var specHash, posHash, ordHash string

	if len(st.SpecificationsBySymbol) > 0 {
		specs := make([]map[string]interface{}, 0, len(st.SpecificationsBySymbol))
		for _, s := range st.SpecificationsBySymbol {
			specs = append(specs, specMap(s, g1))
		}
		sort.Slice(specs, func(i, j int) bool { return specs[i]["symbol"].(string) < specs[j]["symbol"].(string) })
		specHash = hashCollection(specs, g1)
	}

	if st.PositionsInitialized {
		positions := make([]map[string]interface{}, 0, len(st.Positions))
		for _, p := range st.Positions {
			positions = append(positions, positionMap(p, g1))
		}
		sort.Slice(positions, func(i, j int) bool { return positions[i]["id"].(string) < positions[j]["id"].(string) })
		posHash = hashCollection(positions, g1)
	}

	if st.OrdersInitialized {
		orders := make([]map[string]interface{}, 0, len(st.Orders))
		for _, o := range st.Orders {
			orders = append(orders, orderMap(o, g1))
		}
		sort.Slice(orders, func(i, j int) bool { return orders[i]["id"].(string) < orders[j]["id"].(string) })
		ordHash = hashCollection(orders, g1)
	}

	return Hashes{Specifications: specHash, Positions: posHash, Orders: ordHash}
}

// -----------------------------------------------------------------------------

// specMap strips volatile fields per §4.4 step 3 and optionally the g1-only
// description field.
func specMap(s *models.SymbolSpecification, g1 bool) map[string]interface{} {
	out := map[string]interface{}{
		"symbol":        s.Symbol,
		"digits":        float64(s.Digits),
		"tickSize":      s.TickSize,
		"executionMode": s.ExecutionMode,
		"fillingModes":  toInterfaceSlice(s.FillingModes),
	}
	if !g1 {
		out["description"] = s.Description
	}
	return out
}

// -----------------------------------------------------------------------------

func positionMap(p *models.Position, g1 bool) map[string]interface{} {
	out := map[string]interface{}{
		"id":       p.ID,
		"type":     string(p.Type),
		"symbol":   p.Symbol,
		"volume":   p.Volume,
		"openPrice": p.OpenPrice,
		"swap":     p.Swap,
		"magic":    float64(p.Magic),
	}
	if p.StopLoss != nil {
		out["stopLoss"] = *p.StopLoss
	}
	if p.TakeProfit != nil {
		out["takeProfit"] = *p.TakeProfit
	}
	if !g1 {
		out["time"] = p.Time.Format(timeLayout)
		out["updateTime"] = p.UpdateTime.Format(timeLayout)
	}
	return out
}

// -----------------------------------------------------------------------------

func orderMap(o *models.Order, g1 bool) map[string]interface{} {
	out := map[string]interface{}{
		"id":            o.ID,
		"type":          string(o.Type),
		"state":         o.State,
		"symbol":        o.Symbol,
		"openPrice":     o.OpenPrice,
		"volume":        o.Volume,
		"currentVolume": o.CurrentVolume,
		"positionId":    o.PositionID,
		"platform":      string(o.Platform),
	}
	if o.DoneTime != nil {
		out["doneTime"] = o.DoneTime.Format(timeLayout)
	}
	if !g1 {
		out["time"] = o.Time.Format(timeLayout)
	}
	return out
}

// -----------------------------------------------------------------------------

const timeLayout = "2006-01-02T15:04:05.000Z"

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// -----------------------------------------------------------------------------

// integerKeys never get the toFixed(8) treatment under the g1 stringifier.
var integerKeys = map[string]bool{"digits": true, "magic": true}

// -----------------------------------------------------------------------------

func hashCollection(items []map[string]interface{}, g1 bool) string {
	var serialized string
	if g1 {
		serialized = encodeG1("", anySlice(items))
	} else {
		b, _ := json.Marshal(items)
		serialized = string(b)
	}
	sum := md5.Sum([]byte(serialized))
	return hex.EncodeToString(sum[:])
}

func anySlice(items []map[string]interface{}) []interface{} {
	out := make([]interface{}, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

// -----------------------------------------------------------------------------

// encodeG1 implements cloud-g1's canonical stringifier: numbers format with
// eight fixed decimal places as quoted strings, except values under an
// "integer key" (digits, magic), which stay bare integers.
func encodeG1(key string, v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			encodedKey, _ := json.Marshal(k)
			parts = append(parts, fmt.Sprintf("%s:%s", encodedKey, encodeG1(k, val[k])))
		}
		return "{" + strings.Join(parts, ",") + "}"
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, encodeG1("", item))
		}
		return "[" + strings.Join(parts, ",") + "]"
	case string:
		b, _ := json.Marshal(val)
		return string(b)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		if integerKeys[key] {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.Quote(strconv.FormatFloat(val, 'f', 8, 64))
	case nil:
		return "null"
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}
