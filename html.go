package main

var page = `
<html>
	<head>
		<title>entropycam</title>
		<script src="https://cdn.socket.io/socket.io-1.4.5.js"></script>
	</head>
	<script>
		let socket = io();
		socket.on("motion response", function(msg) {
			document.getElementById('state').innerText = msg.data;
		});
		socket.on("detector running", function(msg) {
			if (msg.pic) { document.getElementById('pic').src = msg.pic; }
			if (msg.diff_img) { document.getElementById('diff').src = msg.diff_img; }
			if (msg.entropy) {
				document.getElementById('entropy').innerText = msg.entropy.total_entropy.toFixed(5);
			}
		});
		socket.on("standard-dev", function(msg) {
			document.getElementById('stats').innerText =
				"mean " + msg.mean.toFixed(5) + " sd " + msg.sample_std_dev.toFixed(5);
		});
		function motion(cmd) { socket.emit("motion", cmd); }
		function take() {
			fetch("/take").then(r => r.json()).then(j => { document.getElementById('pic').src = j.src; });
		}
	</script>
	<body>
		<div>
			<button onclick="motion('on')">on</button>
			<button onclick="motion('off')">off</button>
			<button onclick="take()">take</button>
			<a href="/debug/histogram">histogram</a>
			<span id="state">off</span>
			entropy <span id="entropy">-</span>
			<span id="stats"></span>
		</div>
		<div>
			<img id="pic" display="flex" style="max-width: 49%; height: auto; "/>
			<img id="diff" display="flex" style="max-width: 49%; height: auto; "/>
		</div>
	</body>
</html>
`
