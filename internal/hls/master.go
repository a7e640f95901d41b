// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// AutoLabel names the only variant of a source without a recognisable quality.
const AutoLabel = "auto"

// ErrNoVariants means a master playlist listed no streams.
var ErrNoVariants = errors.New("hls: master playlist has no variants")

// Variant is one playable quality of a media asset.
type Variant struct {
	Label     string `json:"label"`
	URI       string `json:"uri"`
	Bandwidth int    `json:"bandwidth,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

var qualityInPath = regexp.MustCompile(`(?i)(?:^|/)(\d{3,4}p)(?:/|$|[._-])`)

// LabelFromPath extracts a quality label like "720p" from a locator, or
// returns AutoLabel.
func LabelFromPath(locator string) string {
	p := locator
	if u, err := url.Parse(locator); err == nil && u.Path != "" {
		p = u.Path
	}
	if m := qualityInPath.FindStringSubmatch(p); m != nil {
		return strings.ToLower(m[1])
	}
	return AutoLabel
}

// IsMaster reports whether the playlist body lists variant streams.
func IsMaster(playlist string) bool {
	return strings.Contains(playlist, "#EXT-X-STREAM-INF:")
}

// ParseMaster reads a master playlist and resolves each variant URI against
// base. Variants are ordered by descending bandwidth; duplicate labels are
// disambiguated with their bandwidth.
func ParseMaster(playlist, base string) ([]Variant, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("hls: invalid base %q: %w", base, err)
	}

	scanner := bufio.NewScanner(strings.NewReader(playlist))
	var (
		out     []Variant
		pending *Variant
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			v := variantFromAttrs(parseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:")))
			pending = &v
		case strings.HasPrefix(line, "#"):
		case pending != nil:
			ref, err := url.Parse(line)
			if err != nil {
				return nil, fmt.Errorf("hls: invalid variant uri %q: %w", line, err)
			}
			pending.URI = baseURL.ResolveReference(ref).String()
			if pending.Label == "" {
				pending.Label = LabelFromPath(pending.URI)
			}
			out = append(out, *pending)
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoVariants
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Bandwidth > out[j].Bandwidth })
	seen := make(map[string]int, len(out))
	for _, v := range out {
		seen[v.Label]++
	}
	for i := range out {
		if seen[out[i].Label] > 1 {
			out[i].Label = fmt.Sprintf("%s-%dk", out[i].Label, out[i].Bandwidth/1000)
		}
	}
	return out, nil
}

func variantFromAttrs(attrs map[string]string) Variant {
	var v Variant
	v.Bandwidth, _ = strconv.Atoi(attrs["BANDWIDTH"])
	if res := attrs["RESOLUTION"]; res != "" {
		if w, h, ok := strings.Cut(res, "x"); ok {
			v.Width, _ = strconv.Atoi(w)
			v.Height, _ = strconv.Atoi(h)
		}
	}
	switch {
	case attrs["NAME"] != "":
		v.Label = strings.ToLower(attrs["NAME"])
	case v.Height > 0:
		v.Label = strconv.Itoa(v.Height) + "p"
	}
	return v
}

// parseAttributes splits an attribute list, honouring quoted values.
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(s[:eq])
		s = s[eq+1:]

		var val string
		if strings.HasPrefix(s, `"`) {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				val, s = s[1:], ""
			} else {
				val, s = s[1:end+1], s[end+2:]
			}
			s = strings.TrimPrefix(s, ",")
		} else {
			val, s, _ = strings.Cut(s, ",")
		}
		attrs[strings.ToUpper(key)] = val
	}
	return attrs
}

// SingleVariant describes a locator that is itself a media playlist or file.
func SingleVariant(locator string) Variant {
	return Variant{Label: LabelFromPath(locator), URI: locator}
}

