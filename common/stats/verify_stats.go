package stats

import (
	"bytes"
	"fmt"
	"testing"
)

/*
Utilities for validating the stats registry contents from tests in other packages.
*/

type RuleChecker struct {
	name    string
	checker func(interface{}, interface{}) bool
}

func nilCheck(a, b interface{}) (nilFound, eqValues bool) {
	if b == nil && a == nil {
		return true, true
	} else if b == nil || a == nil {
		return true, false
	}
	return false, false
}

/*
errors if a is not int64, returns true if a == b
*/
func int64EqTest(a, b interface{}) bool {
	if nilFound, eqValue := nilCheck(a, b); nilFound {
		return eqValue
	}
	aint, ok := a.(int64)
	if !ok {
		return false
	}
	return aint == int64(b.(int))
}

var Int64EqTest = RuleChecker{name: "IntEqTest", checker: int64EqTest}

/*
errors if a is not int64, returns true if a >= b
*/
func int64GTETest(a, b interface{}) bool {
	if nilFound, eqValue := nilCheck(a, b); nilFound {
		return eqValue
	}
	aint, ok := a.(int64)
	if !ok {
		return false
	}
	return aint >= int64(b.(int))
}

var Int64GTETest = RuleChecker{name: "IntGTETest", checker: int64GTETest}

func doesNotExistTest(a, b interface{}) bool {
	return a == nil
}

var DoesNotExistTest = RuleChecker{name: "NotExistCheck", checker: doesNotExistTest}

/*
defines the condition checker to use to validate the measurement.  Each Checker(a, b) implementation
will expect a to be the 'got' value and b to be the 'expected' value.
*/
type Rule struct {
	Checker RuleChecker
	Value   interface{}
}

/*
Verify that the receiver's registry contains values for the keys in the contains map parameter and that
each entry conforms to the rule (condition) associated with that key. Keys are full scoped names.
*/
func VerifyStats(tag string, stat StatsReceiver, t *testing.T, contains map[string]Rule) {
	t.Helper()
	receiver, ok := stat.(*defaultStatsReceiver)
	if !ok {
		t.Fatalf("%s: VerifyStats needs a receiver from DefaultStatsReceiver, got %T", tag, stat)
	}
	registry, ok := receiver.registry.(*finagleStatsRegistry)
	if !ok {
		t.Fatalf("%s: VerifyStats needs a finagle registry, got %T", tag, receiver.registry)
	}

	failed := false
	var msg bytes.Buffer
	msg.WriteString(tag)
	msg.WriteString(":stats registry error:\n")

	asJson := registry.MarshalAll()
	for key, rule := range contains {
		gotValue := asJson[key]
		if rule.Checker.checker(gotValue, rule.Value) {
			continue
		}
		failed = true
		if rule.Checker.name == DoesNotExistTest.name {
			msg.WriteString(fmt.Sprintf("%s: found stat entry when there should not be one\n", key))
		} else {
			msg.WriteString(fmt.Sprintf("%s: got %v, expected to pass %s with %v\n", key, gotValue, rule.Checker.name, rule.Value))
		}
	}
	if failed {
		regBytes, _ := registry.MarshalJSONPretty()
		msg.Write(regBytes)
		t.Error(msg.String())
	}
}
