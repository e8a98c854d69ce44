package server

import (
	"html/template"
	"net/http"
	"time"

	"patentwatch/internal/logger"
)

// The front end is two server-rendered pages. Report HTML is sanitized at
// render time in the summary stage, so embedding it unescaped here is safe.

var uploadTmpl = template.Must(template.New("upload").Parse(`<!DOCTYPE html>
<html lang="zh">
<head>
  <meta charset="utf-8">
  <title>专利侵权分析</title>
</head>
<body>
  <h1>专利侵权分析</h1>
  <form id="upload-form">
    <p><label>上传专利 PDF：<input type="file" name="file" accept=".pdf"></label></p>
    <p><label>或输入专利页面 URL：<input type="url" name="url" size="60"></label></p>
    <p><button type="submit">开始分析</button></p>
  </form>
  <p id="status"></p>
  <script>
    const form = document.getElementById('upload-form');
    const status = document.getElementById('status');
    form.addEventListener('submit', async (e) => {
      e.preventDefault();
      status.textContent = '上传中...';
      const up = await fetch('/upload', {method: 'POST', body: new FormData(form)});
      const upBody = await up.json();
      if (!up.ok) { status.textContent = upBody.error; return; }
      status.textContent = '分析中，请稍候...';
      const data = new FormData();
      data.append('token', upBody.token);
      const an = await fetch('/analyze', {method: 'POST', body: data});
      const anBody = await an.json();
      if (!an.ok) { status.textContent = anBody.error; return; }
      window.location = '/report/' + anBody.token;
    });
  </script>
</body>
</html>
`))

var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="zh">
<head>
  <meta charset="utf-8">
  <title>分析报告 {{.ReportID}}</title>
</head>
<body>
  <h1>专利侵权分析报告</h1>
  <p>报告编号：{{.ReportID}}<br>生成时间：{{.ReportTime}}</p>
  <div>{{.Body}}</div>
  <p><a href="/">返回</a></p>
</body>
</html>
`))

func renderUploadPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := uploadTmpl.Execute(w, nil); err != nil {
		logger.Log.Errorf("渲染上传页面失败: %v", err)
	}
}

func renderReportPage(w http.ResponseWriter, a *Analysis) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		ReportID   string
		ReportTime string
		Body       template.HTML
	}{
		ReportID:   a.ReportID,
		ReportTime: formatReportTime(a.CompletedAt),
		Body:       template.HTML(a.ReportHTML),
	}
	if err := reportTmpl.Execute(w, data); err != nil {
		logger.Log.Errorf("渲染报告页面失败: %v", err)
	}
}

func formatReportTime(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return t.Local().Format("2006-01-02 15:04")
}
