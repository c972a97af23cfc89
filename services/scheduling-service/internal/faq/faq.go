// Package faq answers free-text customer questions by keyword matching
// against a fixed answer catalog, suggesting related questions alongside.
package faq

import (
	"sort"
	"strings"
)

// Entry is one canned answer. Keywords are matched as substrings of the
// lowercased message; the first entry with any hit wins.
type Entry struct {
	Keywords []string
	Question string
	Response string
}

type Suggestion struct {
	Question string   `json:"question"`
	Keywords []string `json:"keywords"`
}

type Reply struct {
	Reply       string       `json:"reply"`
	Suggestions []Suggestion `json:"similar_questions,omitempty"`
}

// Responder holds the catalog and the support phone number interpolated into
// the canned answers.
type Responder struct {
	phone   string
	entries []Entry
}

const DefaultSupportPhone = "(555) 123-4567"

func NewResponder(supportPhone string) *Responder {
	phone := strings.TrimSpace(supportPhone)
	if phone == "" {
		phone = DefaultSupportPhone
	}
	return &Responder{phone: phone, entries: defaultEntries(phone)}
}

// Respond matches the message against the catalog. Entry order matters: the
// most specific entries come first so "oil change price" beats the generic
// "price" entry.
func (r *Responder) Respond(message string) Reply {
	msg := strings.ToLower(strings.TrimSpace(message))
	if len(msg) < 3 {
		return Reply{Reply: r.fallback(), Suggestions: r.similar(nil, nil)}
	}

	for i := range r.entries {
		entry := &r.entries[i]
		var hits []string
		for _, kw := range entry.Keywords {
			if strings.Contains(msg, kw) {
				hits = append(hits, kw)
			}
		}
		if len(hits) > 0 {
			return Reply{
				Reply:       entry.Response,
				Suggestions: r.similar(append(hits, extractKeywords(msg)...), entry),
			}
		}
	}

	return Reply{Reply: r.fallback(), Suggestions: r.similar(extractKeywords(msg), nil)}
}

func (r *Responder) fallback() string {
	return "I'm not sure I can answer that question accurately. For the best assistance, please call us at " +
		r.phone + ". Our team will be happy to help you with any questions or concerns!"
}

// similar ranks the rest of the catalog by keyword affinity with the message.
// With no keywords at all it falls back to the top of the catalog.
func (r *Responder) similar(keywords []string, exclude *Entry) []Suggestion {
	if len(keywords) == 0 {
		var out []Suggestion
		for i := range r.entries {
			entry := &r.entries[i]
			if entry == exclude || entry.Question == "" {
				continue
			}
			out = append(out, Suggestion{Question: entry.Question, Keywords: entry.Keywords})
			if len(out) == 3 {
				break
			}
		}
		return out
	}

	type scored struct {
		entry *Entry
		score int
	}
	var ranked []scored
	for i := range r.entries {
		entry := &r.entries[i]
		if entry == exclude || entry.Question == "" {
			continue
		}
		score := 0
		for _, kw := range keywords {
			for _, ekw := range entry.Keywords {
				if strings.Contains(ekw, kw) || strings.Contains(kw, ekw) {
					score += 2
					break
				}
			}
		}
		for _, kw := range keywords {
			for _, ekw := range entry.Keywords {
				if related(kw, ekw) {
					score++
				}
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{entry: entry, score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > 4 {
		ranked = ranked[:4]
	}
	out := make([]Suggestion, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, Suggestion{Question: s.entry.Question, Keywords: s.entry.Keywords})
	}
	return out
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "get": {}, "has": {}, "him": {}, "his": {},
	"how": {}, "its": {}, "may": {}, "she": {}, "too": {}, "use": {},
}

func extractKeywords(msg string) []string {
	var out []string
	for _, word := range strings.Fields(msg) {
		if len(word) <= 2 {
			continue
		}
		if _, skip := stopwords[word]; skip {
			continue
		}
		out = append(out, word)
	}
	return out
}

var relatedGroups = [][]string{
	{"price", "cost", "charge", "fee", "pricing", "estimate", "much"},
	{"oil", "change", "service", "maintenance"},
	{"tire", "tires", "wheel", "rotation"},
	{"brake", "brakes", "pad", "rotor"},
	{"appointment", "book", "schedule", "reserve"},
	{"hours", "open", "close", "time", "when"},
	{"location", "address", "where", "find"},
	{"payment", "pay", "accept", "card", "cash"},
}

func related(a, b string) bool {
	for _, group := range relatedGroups {
		inA, inB := false, false
		for _, w := range group {
			if w == a {
				inA = true
			}
			if w == b {
				inB = true
			}
		}
		if inA && inB {
			return true
		}
	}
	return false
}

func defaultEntries(phone string) []Entry {
	return []Entry{
		{
			Keywords: []string{"hours", "open", "close", "time", "when"},
			Question: "What are your hours of operation?",
			Response: "We are open Monday-Friday from 8:00 AM to 6:00 PM, and Saturday from 9:00 AM to 4:00 PM. We are closed on Sundays.",
		},
		{
			Keywords: []string{"appointment", "book", "schedule", "reserve"},
			Question: "How do I book an appointment?",
			Response: "You can book an appointment online through our booking page, or call us at " + phone + ". We typically have availability within 2-3 business days.",
		},
		{
			Keywords: []string{"oil change price", "oil change cost", "how much oil change"},
			Question: "How much does an oil change cost?",
			Response: "Our oil change services start at $39.99 for conventional oil and $69.99 for full synthetic oil. This includes up to 5 quarts of oil, a new filter, and a complimentary multi-point inspection. Price may vary based on your vehicle type.",
		},
		{
			Keywords: []string{"tire price", "tire cost", "how much tire", "tire installation"},
			Question: "How much do tires cost?",
			Response: "Tire prices vary by size and brand, typically ranging from $80 to $300 per tire. Installation is $25 per tire and includes mounting, balancing, valve stems, and disposal of old tires. We offer price matching and financing options.",
		},
		{
			Keywords: []string{"brake price", "brake cost", "how much brake", "brake pad"},
			Question: "How much does brake service cost?",
			Response: "Brake pad replacement starts at $149.99 per axle for most vehicles. This includes pads, hardware, and labor. If rotors need resurfacing or replacement, prices range from $299 to $499 per axle. We offer a lifetime warranty on brake pads.",
		},
		{
			Keywords: []string{"alignment price", "alignment cost", "wheel alignment"},
			Question: "How much does wheel alignment cost?",
			Response: "A standard 2-wheel alignment is $79.99, and a 4-wheel alignment is $119.99. This service typically takes about an hour and helps ensure even tire wear and proper handling. We recommend alignment checks annually or if you notice uneven tire wear.",
		},
		{
			Keywords: []string{"diagnostic price", "diagnostic cost", "check engine"},
			Question: "How much does a diagnostic check cost?",
			Response: "Our diagnostic service is $89.99, which is waived if you proceed with the recommended repairs. This includes a complete computerized scan and inspection to identify any issues with your vehicle.",
		},
		{
			Keywords: []string{"battery price", "battery cost", "new battery"},
			Question: "How much does a car battery cost?",
			Response: "Car batteries range from $129 to $249 depending on your vehicle's requirements. Installation is free with battery purchase. All our batteries come with a warranty, and we offer free battery testing.",
		},
		{
			Keywords: []string{"rotation price", "tire rotation cost"},
			Question: "How much does tire rotation cost?",
			Response: "Tire rotation is $29.99 and takes about 20-30 minutes. We recommend rotating your tires every 5,000-7,000 miles to ensure even wear. This service is complimentary with any oil change or tire purchase.",
		},
		{
			Keywords: []string{"inspection price", "inspection cost", "safety inspection"},
			Question: "How much does a vehicle inspection cost?",
			Response: "State safety inspections are $25, and emissions testing is $35. A comprehensive pre-purchase vehicle inspection is $149.99 and includes a detailed report of the vehicle's condition.",
		},
		{
			Keywords: []string{"transmission price", "transmission cost", "transmission service"},
			Question: "How much does transmission service cost?",
			Response: "Transmission fluid service starts at $149.99. More extensive transmission repairs can range from $500 to $3,500 depending on the issue. We recommend a transmission inspection to provide an accurate quote for your specific needs.",
		},
		{
			Keywords: []string{"ac price", "air conditioning", "ac recharge", "freon"},
			Question: "How much does AC service cost?",
			Response: "AC recharge service starts at $149.99 and includes leak testing and up to 1 lb of refrigerant. More extensive AC repairs range from $300 to $1,200. We offer a free AC system diagnosis with any service.",
		},
		{
			Keywords: []string{"price", "cost", "how much", "fee", "charge", "pricing", "estimate"},
			Question: "What are your service prices?",
			Response: "Our pricing varies based on the service needed. Common services include: Oil changes ($40-$70), Tire installation ($25/tire), Brake service ($150-$499), Alignments ($80-$120), and Diagnostics ($90). For a detailed quote specific to your vehicle, call us at " + phone + " or book an appointment.",
		},
		{
			Keywords: []string{"service", "offer", "what do you", "provide"},
			Question: "What services do you offer?",
			Response: "We provide a full range of automotive services including oil changes, tire services, brake repairs, engine diagnostics, and general maintenance. For specific service inquiries, please call " + phone + ".",
		},
		{
			Keywords: []string{"location", "address", "where", "find you"},
			Question: "Where are you located?",
			Response: "We are located at 123 Main Street. You can easily find us with GPS navigation. For directions, please call us at " + phone + ".",
		},
		{
			Keywords: []string{"cancel", "reschedule", "change appointment"},
			Question: "How do I cancel or reschedule an appointment?",
			Response: "To cancel or reschedule your appointment, please call us at " + phone + " at least 24 hours in advance. You can also manage appointments through your account dashboard.",
		},
		{
			Keywords: []string{"payment", "pay", "accept", "credit card", "cash"},
			Question: "What payment methods do you accept?",
			Response: "We accept cash, all major credit cards, and debit cards. Payment is due upon completion of service.",
		},
		{
			Keywords: []string{"warranty", "guarantee"},
			Question: "Do you offer a warranty?",
			Response: "We stand behind our work with a comprehensive warranty. Specific warranty terms depend on the service provided. Call us at " + phone + " for details.",
		},
		{
			Keywords: []string{"emergency", "urgent", "immediate", "now", "asap"},
			Question: "Do you offer emergency services?",
			Response: "For urgent or emergency service, please call us immediately at " + phone + ". We will do our best to accommodate your needs as quickly as possible.",
		},
		{
			Keywords: []string{"tire", "tires"},
			Question: "What tire services do you offer?",
			Response: "We offer complete tire services including new tire installation, rotation, balancing, and repairs. We carry a wide selection of tire brands to fit your needs and budget.",
		},
		{
			Keywords: []string{"oil change", "oil"},
			Question: "Do you offer oil changes?",
			Response: "We offer quick and professional oil change services. Most oil changes take about 30 minutes. You can book an appointment online or walk in during business hours.",
		},
		{
			Keywords: []string{"brake", "brakes"},
			Question: "What brake services do you offer?",
			Response: "We provide comprehensive brake services including inspection, pad replacement, rotor resurfacing, and complete brake system repairs. Safety is our top priority.",
		},
		{
			Keywords: []string{"contact", "phone", "call", "reach"},
			Question: "How can I contact you?",
			Response: "You can reach us at " + phone + " during business hours. We're happy to answer any questions you may have!",
		},
		{
			Keywords: []string{"hello", "hi", "hey", "greetings"},
			Question: "Hello",
			Response: "Hello! How can I help you today? Feel free to ask about our services, hours, appointments, or any other questions you may have.",
		},
		{
			Keywords: []string{"thank", "thanks"},
			Question: "Thank you",
			Response: "You're welcome! If you have any other questions, feel free to ask. Otherwise, you can reach us at " + phone + ".",
		},
	}
}
