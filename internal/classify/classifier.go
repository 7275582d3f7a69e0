// Package classify labels documents and emails. The LLM path is optional;
// when it is down or disabled the rule-based fallback answers instead, so
// callers always get a value and never an outage.
package classify

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/LeviWoodfall/Regia/internal/config"
)

// DocumentClassifier is the collaborator contract the pipeline depends on.
// Errors are advisory; callers degrade to empty values instead of failing.
type DocumentClassifier interface {
	ClassifyDocument(filename, text, emailSubject string) (string, error)
	Categorize(label string) string
	ClassifyEmail(subject, sender, bodyPreview string) (string, error)
	Summarize(text string) (string, error)
}

// classificationRules maps a label to the keywords that suggest it.
var classificationRules = map[string][]string{
	"invoice":        {"invoice", "bill", "payment due", "amount due", "total due", "tax invoice"},
	"receipt":        {"receipt", "payment received", "thank you for your payment", "transaction"},
	"statement":      {"statement", "account summary", "balance", "opening balance"},
	"contract":       {"contract", "agreement", "terms and conditions", "hereby agree"},
	"report":         {"report", "analysis", "summary", "quarterly", "annual", "monthly"},
	"correspondence": {"dear", "regards", "sincerely", "letter", "notice"},
	"shipping":       {"shipping", "tracking", "delivery", "shipment", "dispatch"},
	"insurance":      {"insurance", "policy", "premium", "claim", "coverage"},
	"tax":            {"tax return", "tax form", "w-2", "1099", "ato", "tax assessment"},
	"legal":          {"legal", "court", "lawsuit", "subpoena", "affidavit"},
	"medical":        {"medical", "prescription", "diagnosis", "patient", "healthcare"},
	"payslip":        {"payslip", "pay stub", "salary", "wages", "earnings"},
}

// categoryMap folds labels into broader categories.
var categoryMap = map[string]string{
	"invoice":        "financial",
	"receipt":        "financial",
	"statement":      "financial",
	"contract":       "legal",
	"report":         "business",
	"correspondence": "communication",
	"shipping":       "logistics",
	"insurance":      "financial",
	"tax":            "financial",
	"legal":          "legal",
	"medical":        "personal",
	"payslip":        "financial",
}

// ruleOrder keeps rule-based scoring deterministic when scores tie.
var ruleOrder = []string{
	"invoice", "receipt", "statement", "contract", "report", "correspondence",
	"shipping", "insurance", "tax", "legal", "medical", "payslip",
}

// Classifier is the LLM-with-fallback DocumentClassifier.
type Classifier struct {
	client          *Client
	model           string
	fallbackToRules bool
	log             *logrus.Logger
}

// NewClassifier creates a Classifier from configuration.
func NewClassifier(cfg config.ClassifierConfig, log *logrus.Logger) *Classifier {
	return &Classifier{
		client:          NewClient(cfg),
		model:           cfg.Model,
		fallbackToRules: cfg.FallbackToRules,
		log:             log,
	}
}

// Model names the classifier backing the labels it produces.
func (c *Classifier) Model() string {
	if c.client.IsConfigured() {
		return c.model
	}
	return "rules"
}

// ClassifyDocument labels a document as invoice, receipt, contract, etc.
func (c *Classifier) ClassifyDocument(filename, text, emailSubject string) (string, error) {
	if c.client.IsConfigured() {
		preview := truncate(text, 500)
		system := "Classify this document into exactly ONE category. " +
			"Categories: invoice, receipt, statement, contract, report, " +
			"correspondence, shipping, insurance, tax, legal, medical, payslip, other. " +
			"Respond with ONLY the category name, nothing else."
		user := fmt.Sprintf("Filename: %s\nEmail subject: %s\nContent preview: %s", filename, emailSubject, preview)

		response, err := c.client.Complete(system, user)
		if err == nil {
			label := firstWord(response)
			if _, ok := classificationRules[label]; ok || label == "other" {
				return label, nil
			}
		} else {
			c.log.WithError(err).Warn("LLM classification failed")
		}
	}

	if c.fallbackToRules {
		return c.ruleClassify(filename, text, emailSubject), nil
	}
	return "other", nil
}

// Categorize maps a label to its broader category.
func (c *Classifier) Categorize(label string) string {
	if category, ok := categoryMap[label]; ok {
		return category
	}
	return "general"
}

// ClassifyEmail labels the email itself, independent of its documents.
func (c *Classifier) ClassifyEmail(subject, sender, bodyPreview string) (string, error) {
	if c.client.IsConfigured() {
		system := "Classify this email into ONE category: " +
			"invoice, newsletter, notification, personal, business, " +
			"shipping, financial, marketing, other. " +
			"Respond with ONLY the category name."
		user := fmt.Sprintf("From: %s\nSubject: %s\nPreview: %s", sender, subject, truncate(bodyPreview, 300))

		response, err := c.client.Complete(system, user)
		if err == nil && firstWord(response) != "" {
			return firstWord(response), nil
		}
	}
	return c.ruleClassifyEmail(subject, sender, bodyPreview), nil
}

// Summarize produces a short summary. Without an LLM the leading text
// itself is the summary.
func (c *Classifier) Summarize(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	if c.client.IsConfigured() {
		system := "Summarize this document in 1-2 sentences."
		response, err := c.client.Complete(system, truncate(text, 1500))
		if err == nil && strings.TrimSpace(response) != "" {
			return strings.TrimSpace(response), nil
		}
	}

	if len(text) > 200 {
		return strings.TrimSpace(text[:200]) + "...", nil
	}
	return strings.TrimSpace(text), nil
}

func (c *Classifier) ruleClassify(filename, text, emailSubject string) string {
	combined := strings.ToLower(filename + " " + text + " " + emailSubject)

	best, bestScore := "other", 0
	for _, label := range ruleOrder {
		score := 0
		for _, kw := range classificationRules[label] {
			if strings.Contains(combined, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = label, score
		}
	}
	return best
}

func (c *Classifier) ruleClassifyEmail(subject, sender, bodyPreview string) string {
	combined := strings.ToLower(subject + " " + sender + " " + bodyPreview)

	containsAny := func(keywords ...string) bool {
		for _, kw := range keywords {
			if strings.Contains(combined, kw) {
				return true
			}
		}
		return false
	}

	switch {
	case containsAny("invoice", "bill", "payment"):
		return "invoice"
	case containsAny("newsletter", "unsubscribe", "weekly digest"):
		return "newsletter"
	case containsAny("shipped", "tracking", "delivery"):
		return "shipping"
	case containsAny("noreply", "notification", "alert"):
		return "notification"
	}
	return "other"
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func firstWord(s string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
