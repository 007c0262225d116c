package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/example/stockroom/internal/domain/product"
)

// BuildLowStockAlertBody builds the HTML body listing low-stock products.
func BuildLowStockAlertBody(items []product.Product) string {
	var rows strings.Builder
	for _, item := range items {
		category := item.Category
		if category == "" {
			category = "-"
		}
		rows.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 10px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: center; color: #c0392b; font-weight: bold;">%d</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: right;">$%s</td>
			</tr>`,
			html.EscapeString(item.Name),
			html.EscapeString(category),
			item.Stock,
			item.Price.StringFixed(2),
		))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 20px; border-bottom: 2px solid #c0392b; padding-bottom: 10px;">Low stock alert</h1>
	<p>The following products are at or below %d units:</p>
	<table style="width: 100%%; border-collapse: collapse;">
		<thead>
			<tr style="background: #f8f9fa;">
				<th style="padding: 10px; text-align: left;">Product</th>
				<th style="padding: 10px; text-align: left;">Category</th>
				<th style="padding: 10px; text-align: center;">Stock</th>
				<th style="padding: 10px; text-align: right;">Price</th>
			</tr>
		</thead>
		<tbody>
			%s
		</tbody>
	</table>
	<p style="font-size: 12px; color: #999;">This message was sent automatically by the inventory service.</p>
</body>
</html>`, product.LowStockThreshold, rows.String())
}
