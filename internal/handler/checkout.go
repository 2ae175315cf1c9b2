package handler

import (
	"html/template"
	"net/http"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/service"
	"strings"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

func (h *CheckoutHandler) StartCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := userIDFromContext(c)
	if err != nil {
		return err
	}

	session, err := h.checkoutService.StartCheckout(ctx, userID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, dto.NewCheckoutResponse(session))
}

func (h *CheckoutHandler) GetSession(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := userIDFromContext(c)
	if err != nil {
		return err
	}

	session, err := h.checkoutService.GetSession(ctx, userID, c.Param("orderID"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewCheckoutResponse(session))
}

func (h *CheckoutHandler) CancelSession(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := userIDFromContext(c)
	if err != nil {
		return err
	}

	if err := h.checkoutService.CancelSession(ctx, userID, c.Param("sessionID")); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

var returnPage = template.Must(template.New("return").Parse(`
	<!DOCTYPE html>
	<html>
	<head>
		<meta charset="utf-8">
		<title>Payment Processing</title>
		<style>
			body {
				font-family: Arial, sans-serif;
				text-align: center;
				margin-top: 80px;
			}
			.countdown {
				font-size: 24px;
				font-weight: bold;
			}
		</style>
	</head>
	<body>
		<h2>Thanks for your order</h2>
		<p>We are confirming the payment for order <code>{{.OrderID}}</code>. Its status updates once the provider confirms.</p>
		<p>Redirecting to homepage in <span class="countdown" id="countdown">15</span> seconds…</p>

		<script>
			let seconds = 15;
			const el = document.getElementById("countdown");

			const timer = setInterval(function () {
				seconds--;
				el.textContent = seconds;

				if (seconds <= 0) {
					clearInterval(timer);
					window.location.href = "/";
				}
			}, 1000);
		</script>
	</body>
	</html>
`))

// Return is where the provider sends the shopper back after a redirect
// payment method. It only renders; the order moves on through the webhook
// and the finalize call.
func (h *CheckoutHandler) Return(c echo.Context) error {
	orderID := c.QueryParam("orderId")
	if orderID == "" {
		return c.String(http.StatusBadRequest, "missing order id")
	}

	var page strings.Builder
	if err := returnPage.Execute(&page, map[string]string{"OrderID": orderID}); err != nil {
		return err
	}

	return c.HTML(http.StatusOK, page.String())
}
