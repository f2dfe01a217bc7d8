package generate

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif" // decoders for icon sources
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Icon file names Dash expects next to a docset.
const (
	IconFile   = "icon.png"
	Icon2xFile = "icon@2x.png"
)

// ErrNoIcon signals that no usable raster icon source exists.
var ErrNoIcon = errors.New("no icon link found")

// IconSet is the pair of generated docset icons.
type IconSet struct {
	Small string // 16x16
	Large string // 32x32
}

// DiscoverIcon returns the first local file referenced by a <link rel="icon">
// or <link rel="shortcut icon"> of the index page that decodes as a raster
// image. Sphinx favicons are often .ico files, which are skipped.
func DiscoverIcon(htmlDir, indexPage string) (string, error) {
	indexPath := filepath.Join(htmlDir, filepath.FromSlash(indexPage))
	f, err := os.Open(indexPath) // #nosec G304 -- path built from configuration
	if err != nil {
		return "", fmt.Errorf("open index page: %w", err)
	}
	defer func() { _ = f.Close() }()

	doc, err := html.Parse(f)
	if err != nil {
		return "", fmt.Errorf("parse index page: %w", err)
	}

	hrefs := iconHrefs(doc, nil)
	if len(hrefs) == 0 {
		return "", fmt.Errorf("%s: %w", indexPage, ErrNoIcon)
	}
	for _, href := range hrefs {
		path, ok := localIcon(htmlDir, indexPage, href)
		if !ok {
			slog.Debug("Skipping icon link", slog.String("href", href))
			continue
		}
		return path, nil
	}
	return "", fmt.Errorf("%s: no decodable icon among %q: %w", indexPage, hrefs, ErrNoIcon)
}

// localIcon resolves href against the HTML tree and checks the file decodes.
func localIcon(htmlDir, indexPage, href string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	var rel string
	if strings.HasPrefix(u.Path, "/") {
		rel = filepath.FromSlash(strings.TrimPrefix(u.Path, "/"))
	} else {
		rel = filepath.Join(filepath.Dir(filepath.FromSlash(indexPage)), filepath.FromSlash(u.Path))
	}
	path := filepath.Join(htmlDir, rel)
	f, err := os.Open(path) // #nosec G304 -- path inside the built HTML
	if err != nil {
		return "", false
	}
	defer func() { _ = f.Close() }()
	if _, _, err := image.DecodeConfig(f); err != nil {
		return "", false
	}
	return path, true
}

func iconHrefs(n *html.Node, acc []string) []string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Link {
		var rel, href string
		for _, a := range n.Attr {
			switch strings.ToLower(a.Key) {
			case "rel":
				rel = strings.ToLower(a.Val)
			case "href":
				href = a.Val
			}
		}
		if href != "" && slices.Contains(strings.Fields(rel), "icon") {
			acc = append(acc, href)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		acc = iconHrefs(c, acc)
	}
	return acc
}

// MakeIcons scales src into icon.png (16x16) and icon@2x.png (32x32) inside dstDir.
// The aspect ratio is kept, so non-square sources yield a smaller side.
func MakeIcons(src, dstDir string) (IconSet, error) {
	f, err := os.Open(src) // #nosec G304 -- path built from configuration
	if err != nil {
		return IconSet{}, fmt.Errorf("open icon source: %w", err)
	}
	img, _, err := image.Decode(f)
	_ = f.Close()
	if errors.Is(err, image.ErrFormat) {
		return IconSet{}, fmt.Errorf("decode icon source %s: %w: %w", src, err, ErrNoIcon)
	}
	if err != nil {
		return IconSet{}, fmt.Errorf("decode icon source %s: %w", src, err)
	}

	if err := os.MkdirAll(dstDir, 0o750); err != nil {
		return IconSet{}, fmt.Errorf("create icon dir: %w", err)
	}

	set := IconSet{
		Small: filepath.Join(dstDir, IconFile),
		Large: filepath.Join(dstDir, Icon2xFile),
	}
	for path, size := range map[string]int{set.Small: 16, set.Large: 32} {
		if err := writeScaled(img, size, path); err != nil {
			return IconSet{}, err
		}
	}
	return set, nil
}

func writeScaled(src image.Image, size int, path string) error {
	b := src.Bounds()
	w, h := size, size
	if b.Dx() > b.Dy() {
		h = max(1, size*b.Dy()/b.Dx())
	} else if b.Dy() > b.Dx() {
		w = max(1, size*b.Dx()/b.Dy())
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	out, err := os.Create(path) // #nosec G304 -- path built from workspace
	if err != nil {
		return fmt.Errorf("create icon: %w", err)
	}
	if err := png.Encode(out, dst); err != nil {
		_ = out.Close()
		return fmt.Errorf("encode icon: %w", err)
	}
	return out.Close()
}
