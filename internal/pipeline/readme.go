package pipeline

import (
	"path"

	"git.home.luguber.info/inful/docsetbot/internal/docset"
)

// knownTools links the tools a docset build commonly depends on.
var knownTools = map[string]docset.Link{
	"doc2dash":     {Title: "doc2dash", URL: "https://github.com/hynek/doc2dash"},
	"make":         {Title: "GNU Make", URL: "https://www.gnu.org/software/make/"},
	"python":       {Title: "Python 3", URL: "https://www.python.org/"},
	"python3":      {Title: "Python 3", URL: "https://www.python.org/"},
	"sphinx-build": {Title: "Sphinx", URL: "https://www.sphinx-doc.org/"},
	"git":          {Title: "git", URL: "https://git-scm.com/"},
	"nox":          {Title: "Nox", URL: "https://nox.thea.codes/en/stable/"},
}

func (p *Pipeline) readmeData() docset.ReadmeData {
	data := docset.ReadmeData{
		Name:   p.cfg.Library.Name,
		Author: docset.Link{Title: p.cfg.Author.Name, URL: p.cfg.Author.URL},
	}

	seen := map[string]bool{}
	addTool := func(bin string) {
		link, ok := knownTools[path.Base(bin)]
		if !ok || seen[link.Title] {
			return
		}
		seen[link.Title] = true
		data.Requirements = append(data.Requirements, link)
	}

	pub := p.cfg.Publisher.Repository
	if pub != "" {
		data.Publisher = docset.Link{Title: pub, URL: repoURL(pub)}
		data.Requirements = append(data.Requirements, docset.Link{Title: "docsetbot", URL: repoURL(pub)})
		addTool("git")
		data.BuildCommands = append(data.BuildCommands,
			"git clone "+repoURL(pub)+".git",
			"cd "+path.Base(pub),
		)
	}
	addTool(p.cfg.Generator.Binary)
	for _, bc := range p.cfg.Library.BuildCommands {
		if len(bc.Command) > 0 {
			addTool(bc.Command[0])
		}
	}
	data.BuildCommands = append(data.BuildCommands, "docsetbot build")
	return data
}
