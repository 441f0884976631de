// Package domain maps receipts to the business domain that produced them.
//
// Every consumer that groups receipts by domain (the correlator, harvest,
// the PIF tracker and the simulator) shares one Classifier so the keyword
// tables cannot drift apart.
package domain

import (
	"strings"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// Domain names.
const (
	Tariff  = "tariff"
	Border  = "border"
	Gulf    = "gulf"
	Golf    = "golf"
	License = "license"
	Loop    = "loop"
	Unknown = "unknown"
)

// Modules lists the five scoring domains in declaration order.
var Modules = []string{Tariff, Border, Gulf, Golf, License}

// Priority is the order in which domains are scanned for violations.
var Priority = []string{Border, Tariff, Gulf, Golf, License}

// Rule maps receipt_type substrings to a domain.
type Rule struct {
	Domain   string
	Keywords []string
}

// DefaultRules is the ordered keyword table. The first rule with a keyword
// contained in the receipt_type wins.
var DefaultRules = []Rule{
	{Tariff, []string{"tariff", "exemption", "refund", "lobby", "lda", "favoritism", "scotus"}},
	{Border, []string{"detention", "border", "citizen", "death", "facility", "condition", "contract", "donation", "wrongful", "violation_tracking"}},
	{Gulf, []string{"swf", "fara", "investment", "fee", "returns", "benchmark", "deployment"}},
	{Golf, []string{"golf", "liv", "emolument", "payment", "sanction", "sdn", "venue"}},
	{License, []string{"license", "ownership", "partner", "shell", "government_ties", "disclosure"}},
	{Loop, []string{"pif", "cross", "loop", "harvest", "remediation", "overlap", "money_flow", "centrality", "anchor"}},
}

// DefaultOverrides pins receipt types whose names would otherwise match an
// earlier rule or none at all.
var DefaultOverrides = map[string]string{
	"opacity":               Tariff,
	"license_fee_payment":   License,
	"opacity_flag":          License,
	"government_ties":       License,
	"pif_cross_reference":   License,
	"source_classification": Golf,
	"country_aggregate":     Golf,
	"government_tracking":   Golf,
	"transaction_screening": Golf,
}

// Classifier infers domains from receipt types.
type Classifier struct {
	overrides map[string]string
	rules     []Rule
}

// NewClassifier builds a classifier from explicit tables.
func NewClassifier(rules []Rule, overrides map[string]string) *Classifier {
	return &Classifier{rules: rules, overrides: overrides}
}

var defaultClassifier = NewClassifier(DefaultRules, DefaultOverrides)

// Default returns the shared classifier.
func Default() *Classifier { return defaultClassifier }

// Infer returns the domain for a receipt_type, or Unknown.
func (c *Classifier) Infer(receiptType string) string {
	t := strings.ToLower(receiptType)
	if d, ok := c.overrides[t]; ok {
		return d
	}
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(t, kw) {
				return rule.Domain
			}
		}
	}
	return Unknown
}

// InferReceipt honours an explicit "domain" payload field naming a known
// domain and falls back to Infer on the receipt_type.
func (c *Classifier) InferReceipt(r *receipts.Receipt) string {
	if d := strings.ToLower(r.String("domain", "")); IsKnown(d) {
		return d
	}
	return c.Infer(r.Type)
}

// IsKnown reports whether d is one of the five domains or Loop.
func IsKnown(d string) bool {
	switch d {
	case Tariff, Border, Gulf, Golf, License, Loop:
		return true
	}
	return false
}

// Infer classifies with the default classifier.
func Infer(receiptType string) string { return defaultClassifier.Infer(receiptType) }
