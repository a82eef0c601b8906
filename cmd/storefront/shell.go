package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-faster/errors"

	"storefront/internal/analytics"
	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/storefront"
)

const helpText = `commands:
  products                 list products
  search <query>           search by name or description
  category <name>          filter by category
  clear                    drop search and category filters
  view <id>                open a product page
  back                     close the product page
  add <id> [qty]           add to cart
  qty <id> <n>             set quantity (0 removes)
  inc <id> | dec <id>      step quantity
  rm <id>                  remove from cart
  cart                     open the cart
  close                    close the cart or the auth form
  checkout                 place the order
  login <email> <password>
  register <email> <password> <confirm> [display name]
  google                   sign in with Google
  reset <email>            request a password reset
  passwd <new> <confirm>   change your password
  signup | signin          switch between auth forms
  logout
  events                   print and clear the data layer
  quit`

// shell is the line-oriented front end of one storefront.
type shell struct {
	sf        *storefront.Storefront
	dataLayer *analytics.DataLayer
	in        *bufio.Scanner
	out       io.Writer
}

func newShell(sf *storefront.Storefront, dataLayer *analytics.DataLayer, in io.Reader, out io.Writer) *shell {
	return &shell{
		sf:        sf,
		dataLayer: dataLayer,
		in:        bufio.NewScanner(in),
		out:       out,
	}
}

// readLine is shared with the Google code prompt.
func (s *shell) readLine() (string, bool) {
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

// promptCode asks for the Google authorization code on the same input.
func (s *shell) promptCode(_ context.Context, authURL string) (string, error) {
	fmt.Fprintf(s.out, "Open this URL, approve, and paste the code (empty to cancel):\n%s\ncode> ", authURL)
	code, ok := s.readLine()
	if !ok {
		return "", io.EOF
	}
	return code, nil
}

func (s *shell) run(ctx context.Context) {
	s.render()
	for {
		fmt.Fprintf(s.out, "%s> ", s.sf.Mode())
		line, ok := s.readLine()
		if !ok || ctx.Err() != nil {
			return
		}
		if line == "" {
			continue
		}
		if !s.exec(ctx, strings.Fields(line), line) {
			return
		}
	}
}

// exec runs one command and reports whether the shell should keep going.
func (s *shell) exec(ctx context.Context, args []string, line string) bool {
	cmd := strings.ToLower(args[0])
	rest := strings.TrimSpace(strings.TrimPrefix(line, args[0]))

	var err error
	switch cmd {
	case "quit", "exit":
		return false
	case "help", "?":
		fmt.Fprintln(s.out, helpText)
		return true
	case "products", "ls":
	case "search":
		s.sf.Search(ctx, rest)
	case "category":
		s.sf.FilterCategory(ctx, rest)
	case "clear":
		s.sf.ClearFilters(ctx)
	case "view":
		if len(args) < 2 {
			return s.usage("view <id>")
		}
		_, err = s.sf.ViewProduct(ctx, models.ID(args[1]))
	case "back":
		s.sf.CloseProduct()
	case "add":
		if len(args) < 2 {
			return s.usage("add <id> [qty]")
		}
		qty := 1
		if len(args) > 2 {
			if qty, err = strconv.Atoi(args[2]); err != nil {
				return s.usage("add <id> [qty]")
			}
		}
		err = s.sf.AddToCart(ctx, models.ID(args[1]), qty)
	case "qty":
		if len(args) < 3 {
			return s.usage("qty <id> <n>")
		}
		n, convErr := strconv.Atoi(args[2])
		if convErr != nil {
			return s.usage("qty <id> <n>")
		}
		err = s.sf.UpdateQuantity(ctx, models.ID(args[1]), n)
	case "inc", "dec", "rm":
		if len(args) < 2 {
			return s.usage(cmd + " <id>")
		}
		id := models.ID(args[1])
		switch cmd {
		case "inc":
			err = s.sf.IncrementQuantity(ctx, id)
		case "dec":
			err = s.sf.DecrementQuantity(ctx, id)
		default:
			err = s.sf.RemoveFromCart(ctx, id)
		}
	case "cart":
		_, err = s.sf.OpenCart()
	case "close":
		_, err = s.sf.CloseModal()
	case "checkout":
		_, err = s.sf.Checkout(ctx)
	case "login":
		if len(args) < 3 {
			return s.usage("login <email> <password>")
		}
		err = s.sf.Login(ctx, args[1], args[2])
	case "register":
		if len(args) < 4 {
			return s.usage("register <email> <password> <confirm> [display name]")
		}
		err = s.sf.Register(ctx, args[1], args[2], args[3], strings.Join(args[4:], " "))
	case "google":
		err = s.sf.SignInWithGoogle(ctx)
	case "reset":
		if len(args) < 2 {
			return s.usage("reset <email>")
		}
		err = s.sf.ResetPassword(ctx, args[1])
	case "passwd":
		if len(args) < 3 {
			return s.usage("passwd <new> <confirm>")
		}
		err = s.sf.ChangePassword(ctx, args[1], args[2])
	case "signup":
		_, err = s.sf.SwitchToRegister()
	case "signin":
		_, err = s.sf.SwitchToLogin()
	case "logout":
		s.sf.Logout(ctx)
	case "events":
		s.printEvents()
		return true
	default:
		fmt.Fprintf(s.out, "unknown command %q, try help\n", cmd)
		return true
	}

	if errors.Is(err, storefront.ErrInvalidTransition) {
		fmt.Fprintf(s.out, "not available in %s\n", s.sf.Mode())
	}
	s.render()
	return true
}

func (s *shell) usage(u string) bool {
	fmt.Fprintf(s.out, "usage: %s\n", u)
	return true
}

func (s *shell) render() {
	v := s.sf.View()

	if v.Notice != nil {
		fmt.Fprintf(s.out, "[%s] %s\n", v.Notice.Kind, v.Notice.Message)
		s.sf.DismissNotice()
	}

	user := "guest"
	if v.Session != nil {
		user = v.Session.Email
		if v.Session.DisplayName != "" {
			user = v.Session.DisplayName
		}
	}
	fmt.Fprintf(s.out, "-- %s | cart: %d", user, v.CartCount)
	if v.Search != "" {
		fmt.Fprintf(s.out, " | search: %q", v.Search)
	}
	if v.Category != "" {
		fmt.Fprintf(s.out, " | category: %s", v.Category)
	}
	if len(v.Flags) > 0 {
		fmt.Fprintf(s.out, " | flags: %s", strings.Join(v.Flags, ","))
	}
	fmt.Fprintln(s.out)

	switch v.Mode {
	case storefront.ModeCartOpen:
		s.renderCart(v)
	case storefront.ModeLoginOpen:
		fmt.Fprintln(s.out, "Sign in: login <email> <password>, google, or signup to create an account")
	case storefront.ModeRegisterOpen:
		fmt.Fprintln(s.out, "Create an account: register <email> <password> <confirm> [display name], or signin")
	default:
		if v.Product != nil {
			s.renderProduct(v.Product)
		} else {
			s.renderProducts(v)
		}
	}

	if v.AuthError != "" {
		fmt.Fprintf(s.out, "! %s\n", v.AuthError)
	}
}

func (s *shell) renderProducts(v storefront.View) {
	if v.Loading {
		fmt.Fprintln(s.out, "Loading products...")
		return
	}
	if len(v.Products) == 0 {
		fmt.Fprintln(s.out, "No products found")
		return
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, p := range v.Products {
		fmt.Fprintf(tw, "%s\t%s\t$%s\t%s\n", p.ID, p.Name, cart.FormatPrice(p.Price), p.Category)
	}
	tw.Flush()
}

func (s *shell) renderProduct(p *models.Product) {
	fmt.Fprintf(s.out, "%s  $%s\n%s\n", p.Name, cart.FormatPrice(p.Price), p.Description)
	if !p.Available() {
		fmt.Fprintln(s.out, "Out of stock")
	}
}

func (s *shell) renderCart(v storefront.View) {
	if len(v.Cart) == 0 {
		fmt.Fprintln(s.out, "Your cart is empty")
		return
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, l := range v.Cart {
		fmt.Fprintf(tw, "%s\t%s\tx%d\t$%s\n", l.ProductID, l.Product.Name, l.Quantity, cart.FormatPrice(cart.LineTotal(l)))
	}
	fmt.Fprintf(tw, "\tTotal (%d items)\t\t$%s\n", v.TotalItems, v.TotalPrice)
	tw.Flush()
}

func (s *shell) printEvents() {
	if s.dataLayer == nil {
		return
	}
	for _, e := range s.dataLayer.Drain() {
		fmt.Fprintf(s.out, "%s %s %v\n", e.At.Format("15:04:05"), e.Event, e.Payload)
	}
}
