/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logcat

import "strings"

// CategoryOther is assigned when no rule matches.
const CategoryOther = "Other"

type categoryRule struct {
	name     string
	keywords []string
}

// categoryRules is an ordered table; the first matching rule wins. The
// order is load-bearing for downstream viewers' filter groupings and must
// not be rearranged.
var categoryRules = []categoryRule{
	{"Quantum", []string{"quantum"}},
	{"Vivox", []string{"vivox"}},
	{"Network", []string{"connection", "network", "http"}},
	{"Analytics", []string{"analytics", "firebase"}},
	{"Camera", []string{"camera", "follower"}},
	{"Player", []string{"player", "roy"}},
}

// Categorize derives the coarse filter group for a record by scanning the
// tag, then the message, against the rule table. Case-insensitive.
func Categorize(tag, message string) string {
	tag = strings.ToLower(tag)
	message = strings.ToLower(message)

	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(tag, kw) || strings.Contains(message, kw) {
				return rule.name
			}
		}
	}

	return CategoryOther
}
