package location

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var errNoAddress = errors.New("geocode payload carries no address fields")

var (
	cityKeys     = []string{"city", "locality", "town", "village", "municipality", "county"}
	stateKeys    = []string{"state", "principalSubdivision", "region", "state_district", "province"}
	countryKeys  = []string{"country", "countryName", "country_name"}
	areaKeys     = []string{"area", "suburb", "neighbourhood", "neighborhood", "sublocality", "quarter", "city_district"}
	streetKeys   = []string{"street", "road", "route", "street_name", "pedestrian"}
	postcodeKeys = []string{"postcode", "postalCode", "postal_code", "pincode", "zip", "zipcode"}
	displayKeys  = []string{"formatted_address", "formattedAddress", "display_name", "displayName", "formatted", "address"}

	googleComponentTypes = map[string][]string{
		"city":     {"locality", "postal_town", "administrative_area_level_2"},
		"state":    {"administrative_area_level_1"},
		"country":  {"country"},
		"area":     {"sublocality_level_1", "sublocality", "neighborhood"},
		"street":   {"route"},
		"postcode": {"postal_code"},
	}
)

// ParseGeocodePayload normalizes the reverse geocoding shapes we receive into a
// Record without coordinates. It understands the backend envelope
// ({data:{results:[{formatted_address, address_components:{...}}]}}), Google
// style component arrays, Nominatim's nested address object and flat provider
// objects such as BigDataCloud's.
func ParseGeocodePayload(body []byte) (Record, error) {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return Record{}, err
	}
	rec := parseObject(root)
	if rec.populated() == 0 && strings.TrimSpace(rec.FormattedAddress) == "" {
		return Record{}, errNoAddress
	}
	return rec, nil
}

func parseObject(obj map[string]any) Record {
	if data, ok := obj["data"].(map[string]any); ok {
		if rec := parseObject(data); rec.populated() > 0 || rec.FormattedAddress != "" {
			return rec
		}
	}
	if results, ok := obj["results"].([]any); ok && len(results) > 0 {
		if first, ok := results[0].(map[string]any); ok {
			if rec := parseObject(first); rec.populated() > 0 || rec.FormattedAddress != "" {
				return rec
			}
		}
	}

	var rec Record
	rec.FormattedAddress = lookup(obj, displayKeys...)

	switch comps := obj["address_components"].(type) {
	case map[string]any:
		fill(&rec, comps)
	case []any:
		fillGoogle(&rec, comps)
	}
	if nested, ok := obj["address"].(map[string]any); ok {
		fill(&rec, nested)
	}
	if nested, ok := obj["addressComponents"].(map[string]any); ok {
		fill(&rec, nested)
	}
	fill(&rec, obj)
	return rec
}

// fill sets fields that are still empty from a flat key/value object.
func fill(rec *Record, obj map[string]any) {
	setIfEmpty(&rec.City, lookup(obj, cityKeys...))
	setIfEmpty(&rec.State, lookup(obj, stateKeys...))
	setIfEmpty(&rec.Country, lookup(obj, countryKeys...))
	setIfEmpty(&rec.Area, lookup(obj, areaKeys...))
	setIfEmpty(&rec.Street, lookup(obj, streetKeys...))
	setIfEmpty(&rec.Postcode, lookup(obj, postcodeKeys...))
}

func fillGoogle(rec *Record, comps []any) {
	find := func(kinds []string) string {
		for _, kind := range kinds {
			for _, raw := range comps {
				comp, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				types, _ := comp["types"].([]any)
				for _, t := range types {
					if s, _ := t.(string); s == kind {
						if name := lookup(comp, "long_name", "longText", "name"); name != "" {
							return name
						}
					}
				}
			}
		}
		return ""
	}
	setIfEmpty(&rec.City, find(googleComponentTypes["city"]))
	setIfEmpty(&rec.State, find(googleComponentTypes["state"]))
	setIfEmpty(&rec.Country, find(googleComponentTypes["country"]))
	setIfEmpty(&rec.Area, find(googleComponentTypes["area"]))
	setIfEmpty(&rec.Street, find(googleComponentTypes["street"]))
	setIfEmpty(&rec.Postcode, find(googleComponentTypes["postcode"]))
}

// lookup returns the first non-empty scalar value among keys.
func lookup(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := obj[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
