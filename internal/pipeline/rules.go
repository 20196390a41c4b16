// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	log "github.com/sirupsen/logrus"

	"github.com/campusmind-ai/campusmind/internal/config"
)

// RuleEnv is the evaluation environment exposed to override conditions.
type RuleEnv struct {
	Text   string `expr:"text"`
	Role   string `expr:"role"`
	Length int    `expr:"length"`
	Hour   int    `expr:"hour"`
}

type compiledRule struct {
	name    string
	program *vm.Program
}

// ruleSet holds precompiled override rules. Rules may only force the
// complex tier; they are consulted after the intent matcher has declined,
// so an exact catalogue match always wins.
type ruleSet struct {
	rules []compiledRule
	now   func() time.Time
}

// compileRules precompiles all override conditions. A rule that fails to
// compile is a configuration error, reported at startup.
func compileRules(rules []config.OverrideRule) (*ruleSet, error) {
	rs := &ruleSet{now: time.Now}
	for _, r := range rules {
		program, err := expr.Compile(r.Condition, expr.Env(RuleEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile override rule %q: %w", r.Name, err)
		}
		rs.rules = append(rs.rules, compiledRule{name: r.Name, program: program})
	}
	return rs, nil
}

// forcesComplex reports whether any rule matches the query. Evaluation
// errors disable the offending rule for that query rather than failing the
// pipeline.
func (rs *ruleSet) forcesComplex(text, role string) (string, bool) {
	if rs == nil || len(rs.rules) == 0 {
		return "", false
	}
	env := RuleEnv{
		Text:   text,
		Role:   role,
		Length: utf8.RuneCountInString(text),
		Hour:   rs.now().Hour(),
	}
	for _, r := range rs.rules {
		out, err := expr.Run(r.program, env)
		if err != nil {
			log.Warnf("override rule %q failed: %v", r.name, err)
			continue
		}
		if matched, ok := out.(bool); ok && matched {
			return r.name, true
		}
	}
	return "", false
}
