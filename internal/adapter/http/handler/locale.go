package handler

import (
	"zimba-booking/pkg/moneyfmt"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

// formatterFor picks the display locale: an explicit locale wins, then the
// ?locale= query, then the first Accept-Language tag.
func formatterFor(c *gin.Context, explicit string) *moneyfmt.Formatter {
	if explicit != "" {
		return moneyfmt.New(explicit)
	}
	if q := c.Query("locale"); q != "" {
		return moneyfmt.New(q)
	}
	if tags, _, err := language.ParseAcceptLanguage(c.GetHeader("Accept-Language")); err == nil && len(tags) > 0 {
		return moneyfmt.New(tags[0].String())
	}
	return moneyfmt.New("en")
}
