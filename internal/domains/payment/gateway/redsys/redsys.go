package redsys

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"casanova-portal/internal/domains/payment/gateway"
)

// Config holds the redirect rail settings. PayURL is the externally hosted
// payment page; the folder id is appended as a query parameter.
type Config struct {
	PayURL      string `mapstructure:"pay_url"`
	FolderParam string `mapstructure:"folder_param"`
}

func (c Config) GetFolderParam() string {
	if c.FolderParam == "" {
		return "expediente"
	}
	return c.FolderParam
}

type Client struct {
	config Config
}

func NewClient(config Config) *Client {
	return &Client{config: config}
}

var _ gateway.RedsysGateway = (*Client)(nil)

// FolderPayURL returns the redirect URL for paying a folder, or empty when
// the rail is not configured.
func (c *Client) FolderPayURL(folderID int64) string {
	if c.config.PayURL == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(c.config.PayURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s=%s", c.config.PayURL, sep,
		url.QueryEscape(c.config.GetFolderParam()), strconv.FormatInt(folderID, 10))
}
