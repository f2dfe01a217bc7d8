package pipeline

import "fmt"

// BranchName is the fork branch carrying a docset update.
func BranchName(library, version string) string {
	return library + "-" + version
}

// CommitMessage is the message of the docset commit.
func CommitMessage(library, version string) string {
	return fmt.Sprintf("Add docset for %s %s.", library, version)
}

// PullRequestTitle is the title of the docset pull request.
func PullRequestTitle(library, version string) string {
	return fmt.Sprintf("Add docset for %s %s", library, version)
}

// PullRequestBody repeats the title and, when publisher is set, credits the
// repository the docset was generated by.
func PullRequestBody(title, publisher string) string {
	body := title + ".\n"
	if publisher != "" {
		body += fmt.Sprintf("\nThis pull request was generated by [%s](%s).\n", publisher, repoURL(publisher))
	}
	return body
}

func repoURL(ownerName string) string {
	return "https://github.com/" + ownerName
}
