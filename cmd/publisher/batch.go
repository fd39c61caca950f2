package main

import (
	"fmt"
	"strconv"

	"go-callback/internal/sqs"
)

const poisonName = "Error: Poison Message"

type customer struct {
	name    string
	address string
}

var fixedCustomers = []customer{
	{"John Doe", "123 Main St."},
	{"Jane Doe", "Any City, United States"},
	{"Richard Doe", "789 East Blvd."},
	{"Good Message", "Good Message"},
	{"Number Five", "<Empty>"},
}

// fillerDelayMS is the wait attribute of the generated entries after the
// fixed customers.
const fillerDelayMS = 14000

// demoBatch builds batch number batchID with size entries. With poison set,
// the fourth fixed entry is replaced by a poison message.
func demoBatch(batchID, size int, poison bool) []sqs.Entry {
	entries := make([]sqs.Entry, 0, size)

	for i, c := range fixedCustomers {
		if len(entries) == size {
			return entries
		}
		if poison && i == 3 {
			c = customer{poisonName, "Error Message"}
		}
		entries = append(entries, newEntry(fmt.Sprintf("Entry%d-%d", i+1, batchID), c, 0))
	}

	for i := 0; len(entries) < size; i++ {
		c := customer{fmt.Sprintf("Tom %d", i), "Don't know"}
		entries = append(entries, newEntry(fmt.Sprintf("Message%d-%d", i, batchID), c, fillerDelayMS))
	}
	return entries
}

func newEntry(id string, c customer, delayMS int) sqs.Entry {
	return sqs.Entry{
		ID:   id,
		Body: fmt.Sprintf("%s customer information. %s", c.name, id),
		Attributes: map[string]string{
			"name":    c.name,
			"delay":   strconv.Itoa(delayMS),
			"address": c.address,
			"country": "Any Town, United Kingdom",
		},
	}
}
