package host

import (
	"html"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Flatten 将输入区域的富文本 HTML 转为纯文本：
// <br> 为换行，段落类块级元素输出自身文本后换行，其余元素内联，结果去除首尾空白。
// 块内最后一个 <br> 是编辑器的占位换行，不计入文本。
func Flatten(fragment string) string {
	nodes, err := xhtml.ParseFragment(strings.NewReader(fragment), &xhtml.Node{
		Type:     xhtml.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return ""
	}
	var sb strings.Builder
	for _, n := range nodes {
		flatten(n, &sb, false)
	}
	return strings.TrimSpace(sb.String())
}

func flatten(n *xhtml.Node, sb *strings.Builder, lastInBlock bool) {
	switch n.Type {
	case xhtml.TextNode:
		sb.WriteString(n.Data)
	case xhtml.ElementNode:
		switch {
		case n.DataAtom == atom.Br:
			if !lastInBlock {
				sb.WriteByte('\n')
			}
		case isBlock(n.DataAtom):
			children(n, sb, true)
			sb.WriteByte('\n')
		default:
			children(n, sb, false)
		}
	}
}

func children(n *xhtml.Node, sb *strings.Builder, block bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		flatten(c, sb, block && c.NextSibling == nil)
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div:
		return true
	}
	return false
}

// Format 将文本格式化为可插入输入区域的 HTML：每行一个 <p>，空行使用 <br> 占位，文本全部转义
func Format(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var sb strings.Builder
	for _, line := range strings.Split(text, "\n") {
		sb.WriteString("<p>")
		if line == "" {
			sb.WriteString("<br>")
		} else {
			sb.WriteString(html.EscapeString(line))
		}
		sb.WriteString("</p>")
	}
	return sb.String()
}
