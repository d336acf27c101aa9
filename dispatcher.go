package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Chooser picks one file among several that match a target fragment.
type Chooser func(fragment string, candidates []FileMetadata) (FileMetadata, error)

// Assistant answers natural-language requests about one documents directory.
type Assistant struct {
	Dir        string
	List       ListOptions
	Reader     *Reader
	Summarizer *Summarizer
	Strategy   Strategy
	Chooser    Chooser // Optional; without it ambiguous targets are an error
	Threads    int     // Reader workers for ReadAll and Search; 0 means one per CPU
}

// Handle classifies request, resolves its target and executes it.
func (a *Assistant) Handle(ctx context.Context, request string) (*Result, error) {
	requestID := uuid.NewString()
	log := logrus.WithField("request_id", requestID)

	intent, err := Classify(request)
	if err != nil {
		log.WithError(err).Debug("request not recognized")
		return nil, err
	}
	log = log.WithField("intent", intent.Kind.String())

	dir := a.workDir(intent.Folder)
	if intent.Kind == IntentSearch && intent.Target != "" && intent.Folder == "" {
		// "in resumes" may name a folder rather than a file.
		if sub, ok := a.subfolder(intent.Target); ok {
			dir = sub
			intent.Folder, intent.Target = intent.Target, ""
		}
	}
	log.Debugf("handling %q in %s", request, dir)

	result := &Result{
		RequestID: requestID,
		Request:   request,
		Intent:    intent,
		Directory: dir,
	}

	files, err := ListDir(dir, a.List)
	if err != nil {
		return nil, err
	}

	switch intent.Kind {
	case IntentList:
		result.Files = files

	case IntentReadOne:
		target, err := a.resolve(intent.Target, files)
		if err != nil {
			return nil, err
		}
		content := a.Reader.Read(target.Path)
		if !content.Ok() {
			log.WithField("path", target.Path).Warnf("could not read: %s", content.Err)
		}
		result.Contents = []FileContent{content}

	case IntentReadAll:
		result.Files = files
		result.Contents = a.readAll(files)
		for _, c := range result.Contents {
			if !c.Ok() {
				log.WithField("path", c.Path).Warnf("skipping %s: %s", c.Status, c.Err)
			}
		}

	case IntentSearch:
		if intent.Target != "" && !a.namesFile(intent.Target, files) {
			if keyword, ok := UnscopedKeyword(request); ok {
				log.Debugf("%q names no file, searching for %q", intent.Target, keyword)
				intent.Keyword, intent.Target = keyword, ""
				result.Intent = intent
			}
		}
		scope := files
		if intent.Target != "" {
			target, err := a.resolve(intent.Target, files)
			if err != nil {
				return nil, err
			}
			scope = []FileMetadata{target}
		}
		result.Search = a.search(scope, intent.Keyword, log)

	case IntentSummarize:
		target, err := a.resolve(intent.Target, files)
		if err != nil {
			return nil, err
		}
		summary, err := a.summarize(ctx, SummaryRequest{SourcePath: target.Path, Strategy: a.Strategy}, log)
		if err != nil {
			return nil, err
		}
		result.Summary = summary

	default:
		return nil, &RequestError{Kind: ErrUnrecognizedRequest, Input: request}
	}

	return result, nil
}

// workDir applies a folder hint when it names an existing subdirectory.
func (a *Assistant) workDir(folder string) string {
	if folder == "" {
		return a.Dir
	}
	if sub, ok := a.subfolder(folder); ok {
		return sub
	}
	logrus.Debugf("folder hint %q is not a subdirectory of %s, ignoring", folder, a.Dir)
	return a.Dir
}

func (a *Assistant) subfolder(name string) (string, bool) {
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", false
	}
	sub := filepath.Join(a.Dir, clean)
	info, err := os.Stat(sub)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return sub, true
}

// namesFile reports whether a search scope refers to a file. Fragments with
// an extension always do, so a missing "in carol.txt" stays an error.
func (a *Assistant) namesFile(fragment string, files []FileMetadata) bool {
	if filepath.Ext(fragment) != "" {
		return true
	}
	_, err := matchTarget(fragment, files)
	return !errors.Is(err, ErrTargetNotFound)
}

func (a *Assistant) resolve(fragment string, files []FileMetadata) (FileMetadata, error) {
	target, err := ResolveTarget(fragment, files, a.Chooser)
	if err != nil {
		return FileMetadata{}, err
	}
	logrus.Debugf("resolved %q to %s", fragment, target.Name)
	return target, nil
}

func (a *Assistant) search(files []FileMetadata, keyword string, log *logrus.Entry) *SearchReport {
	report := &SearchReport{Keyword: keyword, Results: []SearchResult{}}
	for _, content := range a.readAll(files) {
		if !content.Ok() {
			log.WithField("path", content.Path).Debugf("not searching %s file", content.Status)
			report.Skipped = append(report.Skipped, content)
			continue
		}
		report.Scanned++
		if res := Search(content, keyword); len(res.Matches) > 0 {
			report.Results = append(report.Results, res)
		}
	}
	return report
}

// summarize reads, summarizes and persists one file. Undecodable sources
// yield a partial result and nothing is written.
func (a *Assistant) summarize(ctx context.Context, req SummaryRequest, log *logrus.Entry) (*SummaryResult, error) {
	content := a.Reader.Read(req.SourcePath)
	summary := a.Summarizer.Summarize(ctx, content, req.Strategy)
	if !content.Ok() {
		log.WithField("path", req.SourcePath).Warnf("cannot summarize: %s", content.Err)
		return &summary, nil
	}

	name := filepath.Base(req.SourcePath)
	out := filepath.Join(filepath.Dir(req.SourcePath), summaryFileName(name))
	if err := WriteText(out, summary.Summary); err != nil {
		return nil, fmt.Errorf("saving summary of %s: %w", name, err)
	}
	summary.OutputPath = out
	log.WithFields(logrus.Fields{
		"path":     out,
		"strategy": summary.StrategyUsed.String(),
	}).Info("summary saved")
	return &summary, nil
}

func summaryFileName(name string) string {
	return "summary_" + stem(name) + ".txt"
}

// readAll decodes files with a bounded worker pool. Results keep the order
// of files.
func (a *Assistant) readAll(files []FileMetadata) []FileContent {
	contents := make([]FileContent, len(files))
	if len(files) == 0 {
		return contents
	}

	numWorkers := a.Threads
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	jobs := make(chan int, len(files))
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				contents[i] = a.Reader.Read(files[i].Path)
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return contents
}
