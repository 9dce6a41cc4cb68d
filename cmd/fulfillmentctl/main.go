// Command fulfillmentctl drives the fulfillment HTTP API.
//
//	fulfillmentctl place <productId>:<qty> [<productId>:<qty> ...]
//	fulfillmentctl order <orderId>
//	fulfillmentctl stock <productId> <qty>
//	fulfillmentctl shipping <shippingId>
//	fulfillmentctl ship <shippingId> <PENDING|SHIPPED|DELIVERED>
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fulfillmentservice/internal/domain"

	"github.com/go-resty/resty/v2"
)

const defaultAPI = "http://localhost:8080"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "fulfillmentctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return usageError()
	}

	base := os.Getenv("FULFILLMENT_API")
	if base == "" {
		base = defaultAPI
	}
	client := newClient(base)

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "place":
		items, err := parseItems(rest)
		if err != nil {
			return err
		}
		return client.do(client.r().SetBody(map[string]any{"items": items}), resty.MethodPost, "/orders")
	case "order":
		if len(rest) != 1 {
			return usageError()
		}
		return client.do(client.r().SetPathParam("id", rest[0]), resty.MethodGet, "/orders/{id}")
	case "stock":
		if len(rest) != 2 {
			return usageError()
		}
		qty, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", rest[1])
		}
		req := client.r().SetPathParam("productId", rest[0]).SetBody(map[string]int{"quantity": qty})
		return client.do(req, resty.MethodPut, "/inventory/{productId}")
	case "shipping":
		if len(rest) != 1 {
			return usageError()
		}
		return client.do(client.r().SetPathParam("id", rest[0]), resty.MethodGet, "/shippings/{id}")
	case "ship":
		if len(rest) != 2 {
			return usageError()
		}
		req := client.r().SetPathParam("id", rest[0]).SetBody(map[string]string{"status": rest[1]})
		return client.do(req, resty.MethodPatch, "/shippings/{id}/status")
	default:
		return usageError()
	}
}

type client struct {
	http *resty.Client
}

func newClient(base string) *client {
	return &client{
		http: resty.New().
			SetBaseURL(base).
			SetTimeout(10 * time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

func (c *client) r() *resty.Request {
	return c.http.R()
}

// do sends the request and prints the response body. Non-2xx responses are
// returned as errors carrying the server's message.
func (c *client) do(req *resty.Request, method, path string) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status(), strings.TrimSpace(resp.String()))
	}
	fmt.Println(resp.String())
	return nil
}

// parseItems reads productId:quantity pairs.
func parseItems(args []string) ([]domain.OrderEventItem, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("place needs at least one <productId>:<qty>")
	}
	items := make([]domain.OrderEventItem, 0, len(args))
	for _, arg := range args {
		productID, rawQty, ok := strings.Cut(arg, ":")
		if !ok || productID == "" {
			return nil, fmt.Errorf("invalid item %q, want <productId>:<qty>", arg)
		}
		qty, err := strconv.Atoi(rawQty)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity in %q", arg)
		}
		items = append(items, domain.OrderEventItem{ProductID: productID, Quantity: qty})
	}
	return items, nil
}

func usageError() error {
	return fmt.Errorf("usage: fulfillmentctl place <productId>:<qty>... | order <id> | stock <productId> <qty> | shipping <id> | ship <id> <status>")
}
