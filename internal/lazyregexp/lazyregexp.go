/*
   Copyright The Orbit Kernel Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package lazyregexp provides a lazily-compiled regexp so that packages
// which use it (identifier validation) do not pay the compilation cost at
// package init time.
package lazyregexp

import (
	"regexp"
	"sync"
)

// Regexp wraps regexp.Regexp, delaying compilation until first use.
type Regexp struct {
	once sync.Once
	re   *regexp.Regexp
	str  string
}

// New returns a Regexp that compiles str on first use.
func New(str string) *Regexp {
	return &Regexp{str: str}
}

func (r *Regexp) regexp() *regexp.Regexp {
	r.once.Do(func() {
		r.re = regexp.MustCompile(r.str)
	})
	return r.re
}

// MatchString reports whether s contains any match of the regular expression.
func (r *Regexp) MatchString(s string) bool {
	return r.regexp().MatchString(s)
}

// String returns the source text used to compile the regular expression.
func (r *Regexp) String() string {
	return r.str
}
